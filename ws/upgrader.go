// Package ws holds the pieces shared by the websocket transports in its
// subpackages.
package ws

import (
	"context"
	"io"
	"net/http"

	"github.com/vipnode/qwebchannel/webchannel"
)

// Upgrader takes an HTTP request, upgrades it to a websocket connection and
// returns a transport. This allows switching between different websocket
// implementations.
type Upgrader interface {
	Upgrade(w http.ResponseWriter, r *http.Request) (webchannel.Transport, error)
}

// UpgraderFunc adapts a function to the Upgrader interface.
type UpgraderFunc func(w http.ResponseWriter, r *http.Request) (webchannel.Transport, error)

func (f UpgraderFunc) Upgrade(w http.ResponseWriter, r *http.Request) (webchannel.Transport, error) {
	return f(w, r)
}

// DialFunc opens a client transport to a websocket URL.
type DialFunc func(ctx context.Context, url string) (webchannel.Transport, error)

// Handler upgrades every request with u and hands the transport to serve,
// closing it once serve returns.
func Handler(u Upgrader, serve func(webchannel.Transport) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := u.Upgrade(w, r)
		if err != nil {
			logger.Warningf("websocket upgrade error from %s: %s", r.RemoteAddr, err)
			return
		}
		defer t.Close()
		if err := serve(t); err != nil && err != io.EOF {
			logger.Warningf("websocket serve error from %s: %s", r.RemoteAddr, err)
		}
	}
}
