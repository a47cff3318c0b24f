// Package natstransport carries webchannel messages over NATS subjects, for
// hosts that sit behind a message bus instead of a websocket.
package natstransport

import (
	"io"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/vipnode/qwebchannel/webchannel"
)

// inboxSize is the number of received messages buffered before the NATS
// client starts dropping them as a slow consumer.
const inboxSize = 256

var _ webchannel.Transport = &Transport{}

// New returns a Transport that publishes every message on outSubject and
// receives from a subscription on inSubject. The transport does not own conn;
// Close only unsubscribes.
func New(conn *nats.Conn, outSubject, inSubject string) (*Transport, error) {
	inbox := make(chan *nats.Msg, inboxSize)
	sub, err := conn.ChanSubscribe(inSubject, inbox)
	if err != nil {
		return nil, err
	}
	return &Transport{
		conn:    conn,
		subject: outSubject,
		sub:     sub,
		inbox:   inbox,
		closed:  make(chan struct{}),
	}, nil
}

// Transport is a webchannel transport over a pair of NATS subjects.
type Transport struct {
	conn    *nats.Conn
	subject string
	sub     *nats.Subscription
	inbox   chan *nats.Msg

	once   sync.Once
	closed chan struct{}
}

func (t *Transport) Send(data []byte) error {
	select {
	case <-t.closed:
		return webchannel.ErrClosed
	default:
	}
	return t.conn.Publish(t.subject, data)
}

func (t *Transport) Receive() ([]byte, error) {
	select {
	case msg := <-t.inbox:
		return msg.Data, nil
	case <-t.closed:
		return nil, io.EOF
	}
}

func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.closed)
		err = t.sub.Unsubscribe()
	})
	return err
}
