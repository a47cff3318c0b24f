package webchannel

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/vipnode/qwebchannel/internal/pretty"
)

// debugPayloadLen is how much of each message DebugTransport logs.
const debugPayloadLen = 512

// Transport carries encoded messages between this side and the host. Send
// may be called from any goroutine; Receive is only called by one reader at
// a time.
type Transport interface {
	// Send delivers one encoded message.
	Send(data []byte) error
	// Receive blocks until the next message arrives. It returns io.EOF once
	// the transport is closed cleanly.
	Receive() ([]byte, error)
	// Close releases the underlying connection.
	Close() error
}

var _ Transport = &ioTransport{}

// IOTransport returns a Transport that writes newline-delimited JSON messages
// to rwc and reads consecutive JSON values from it.
func IOTransport(rwc io.ReadWriteCloser) *ioTransport {
	return &ioTransport{
		dec: json.NewDecoder(rwc),
		w:   rwc,
		c:   rwc,
	}
}

type ioTransport struct {
	muWrite sync.Mutex
	dec     *json.Decoder
	w       io.Writer
	c       io.Closer
}

func (t *ioTransport) Send(data []byte) error {
	t.muWrite.Lock()
	defer t.muWrite.Unlock()
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	_, err := t.w.Write(buf)
	return err
}

func (t *ioTransport) Receive() ([]byte, error) {
	var raw json.RawMessage
	if err := t.dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (t *ioTransport) Close() error {
	return t.c.Close()
}

// pipeBuffer is the number of messages each direction of a Pipe holds before
// Send blocks.
const pipeBuffer = 128

// Pipe returns two connected in-memory transports. Closing either end closes
// both. Useful for testing.
func Pipe() (Transport, Transport) {
	ab := make(chan []byte, pipeBuffer)
	ba := make(chan []byte, pipeBuffer)
	closed := make(chan struct{})
	once := &sync.Once{}
	a := &pipeTransport{in: ba, out: ab, closed: closed, once: once}
	b := &pipeTransport{in: ab, out: ba, closed: closed, once: once}
	return a, b
}

type pipeTransport struct {
	in     <-chan []byte
	out    chan<- []byte
	closed chan struct{}
	once   *sync.Once
}

func (t *pipeTransport) Send(data []byte) error {
	msg := append([]byte(nil), data...)
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	select {
	case t.out <- msg:
		return nil
	case <-t.closed:
		return ErrClosed
	}
}

func (t *pipeTransport) Receive() ([]byte, error) {
	select {
	case msg := <-t.in:
		return msg, nil
	case <-t.closed:
		return nil, io.EOF
	}
}

func (t *pipeTransport) Close() error {
	t.once.Do(func() {
		close(t.closed)
	})
	return nil
}

// DebugTransport wraps a transport and logs every message passing through it
// at debug level. Long payloads are cut.
func DebugTransport(prefix string, t Transport) Transport {
	return &debugTransport{prefix: prefix, Transport: t}
}

type debugTransport struct {
	Transport
	prefix string
}

func (t *debugTransport) Send(data []byte) error {
	err := t.Transport.Send(data)
	logger.Debugf("%s -> %s (err=%v)", t.prefix, pretty.Abbrev(string(data), debugPayloadLen), err)
	return err
}

func (t *debugTransport) Receive() ([]byte, error) {
	data, err := t.Transport.Receive()
	logger.Debugf("%s <- %s (err=%v)", t.prefix, pretty.Abbrev(string(data), debugPayloadLen), err)
	return data, err
}
