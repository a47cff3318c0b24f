package gobwas

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/vipnode/qwebchannel/webchannel"
	wsupgrader "github.com/vipnode/qwebchannel/ws"
)

type rw struct {
	io.Reader
	io.Writer
}

var _ wsupgrader.DialFunc = Dial

// Dial returns a Transport over a client-side websocket connection to url.
func Dial(ctx context.Context, url string) (webchannel.Transport, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return newTransport(conn, br, ws.StateClientSide), nil
}

// newTransport wraps conn. br holds bytes the handshake already read past
// the response, if any.
func newTransport(conn net.Conn, br *bufio.Reader, state ws.State) *wsTransport {
	var r io.Reader = conn
	if br != nil && br.Buffered() > 0 {
		r = io.MultiReader(br, conn)
	}
	return &wsTransport{
		conn:  conn,
		rw:    rw{r, conn},
		state: state,
	}
}

var _ webchannel.Transport = &wsTransport{}

type wsTransport struct {
	muWrite sync.Mutex
	muRead  sync.Mutex
	conn    net.Conn
	rw      io.ReadWriter
	state   ws.State
	closed  atomic.Bool
}

func (t *wsTransport) Receive() ([]byte, error) {
	t.muRead.Lock()
	defer t.muRead.Unlock()
	// Control frames are answered by ReadData, with the write lock held.
	data, _, err := wsutil.ReadData(lockedWriter{t}, t.state)
	if _, ok := err.(wsutil.ClosedError); ok || (err != nil && t.closed.Load()) {
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
	return wsutil.WriteMessage(t.rw, t.state, ws.OpText, data)
}

func (t *wsTransport) Close() error {
	t.closed.Store(true)
	return t.conn.Close()
}

// lockedWriter reads from the transport and serializes its writes with Send.
type lockedWriter struct {
	t *wsTransport
}

func (l lockedWriter) Read(p []byte) (int, error) {
	return l.t.rw.Read(p)
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.t.muWrite.Lock()
	defer l.t.muWrite.Unlock()
	return l.t.rw.Write(p)
}

var _ wsupgrader.Upgrader = &Upgrader{}

// Upgrader upgrades an HTTP request to a websocket connection and returns a
// server-side Transport.
type Upgrader struct {
	Upgrader ws.HTTPUpgrader
}

func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (webchannel.Transport, error) {
	conn, brw, _, err := u.Upgrader.Upgrade(r, w)
	if err != nil {
		return nil, err
	}
	var br *bufio.Reader
	if brw != nil {
		br = brw.Reader
	}
	return newTransport(conn, br, ws.StateServerSide), nil
}
