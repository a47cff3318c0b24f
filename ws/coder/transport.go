// Package coder is a websocket transport built on github.com/coder/websocket.
package coder

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/vipnode/qwebchannel/webchannel"
	"github.com/vipnode/qwebchannel/ws"
)

// ReadLimit is the largest message a transport accepts. Init responses of
// hosts with many objects easily exceed the library default.
const ReadLimit = 16 << 20

var _ ws.DialFunc = Dial

// Dial returns a Transport over a client-side websocket connection to url.
func Dial(ctx context.Context, url string) (webchannel.Transport, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return newTransport(conn), nil
}

// Accept upgrades an HTTP request and returns a server-side Transport.
func Accept(w http.ResponseWriter, r *http.Request) (webchannel.Transport, error) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newTransport(conn), nil
}

var _ ws.Upgrader = ws.UpgraderFunc(Accept)

func newTransport(conn *websocket.Conn) *wsTransport {
	conn.SetReadLimit(ReadLimit)
	ctx, cancel := context.WithCancel(context.Background())
	return &wsTransport{conn: conn, ctx: ctx, cancel: cancel}
}

var _ webchannel.Transport = &wsTransport{}

// wsTransport needs no locks: websocket.Conn supports one concurrent reader
// and any number of concurrent writers.
type wsTransport struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

func (t *wsTransport) Receive() ([]byte, error) {
	_, data, err := t.conn.Read(t.ctx)
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return nil, io.EOF
	}
	if err != nil && t.closed.Load() {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (t *wsTransport) Send(data []byte) error {
	return t.conn.Write(t.ctx, websocket.MessageText, data)
}

func (t *wsTransport) Close() error {
	t.closed.Store(true)
	defer t.cancel()
	return t.conn.Close(websocket.StatusNormalClosure, "")
}
