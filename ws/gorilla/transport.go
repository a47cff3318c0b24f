// Websocket transport using Gorilla's Websocket library
package gorilla

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/vipnode/qwebchannel/webchannel"
	"github.com/vipnode/qwebchannel/ws"
)

var _ ws.DialFunc = Dial

// Dial returns a Transport over a client-side websocket connection to url.
func Dial(ctx context.Context, url string) (webchannel.Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

var _ webchannel.Transport = &wsTransport{}

type wsTransport struct {
	muWrite sync.Mutex
	muRead  sync.Mutex
	conn    *websocket.Conn
	closed  atomic.Bool
}

func (t *wsTransport) Receive() ([]byte, error) {
	t.muRead.Lock()
	defer t.muRead.Unlock()
	_, data, err := t.conn.ReadMessage()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || (err != nil && t.closed.Load()) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (t *wsTransport) Send(data []byte) error {
	t.muWrite.Lock()
	defer t.muWrite.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	t.closed.Store(true)
	t.muWrite.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteMessage(websocket.CloseMessage, msg)
	t.muWrite.Unlock()
	return t.conn.Close()
}

var _ ws.Upgrader = &Upgrader{}

// Upgrader upgrades an HTTP request to a websocket connection and returns a
// server-side Transport.
type Upgrader struct {
	Upgrader websocket.Upgrader
}

func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (webchannel.Transport, error) {
	conn, err := u.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}
