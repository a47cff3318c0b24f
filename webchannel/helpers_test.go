package webchannel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"
)

// recordingTransport keeps every sent frame and hands out frames queued with
// push.
type recordingTransport struct {
	mu   sync.Mutex
	sent [][]byte
	recv chan []byte
	once sync.Once
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{recv: make(chan []byte, 16)}
}

func (t *recordingTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, append([]byte(nil), data...))
	return nil
}

func (t *recordingTransport) Receive() ([]byte, error) {
	data, ok := <-t.recv
	if !ok {
		return nil, io.EOF
	}
	return data, nil
}

func (t *recordingTransport) Close() error {
	t.once.Do(func() { close(t.recv) })
	return nil
}

func (t *recordingTransport) push(data string) {
	t.recv <- []byte(data)
}

func (t *recordingTransport) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.sent))
	for _, s := range t.sent {
		out = append(out, string(s))
	}
	return out
}

func (t *recordingTransport) Last() string {
	sent := t.Sent()
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1]
}

// failingTransport fails every Send.
type failingTransport struct {
	recordingTransport
}

func (t *failingTransport) Send(data []byte) error {
	return io.ErrClosedPipe
}

const calcDescriptors = `{"calc": {"methods": [["add", 0]], "properties": [], "signals": [["done"]]}}`

// newTestChannel returns a Channel whose handshake was answered with
// descriptors.
func newTestChannel(t *testing.T, descriptors string) (*Channel, *recordingTransport) {
	t.Helper()
	transport := newRecordingTransport()
	c, err := New(transport, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.HandleMessage([]byte(fmt.Sprintf(`{"type":10,"id":0,"data":%s}`, descriptors))); err != nil {
		t.Fatal(err)
	}
	return c, transport
}

func mustObject(t *testing.T, c *Channel, name string) *Object {
	t.Helper()
	obj, ok := c.Object(name)
	if !ok {
		t.Fatalf("object not registered: %s", name)
	}
	return obj
}

// assertEqualJSON compares two JSON documents regardless of member order.
func assertEqualJSON(t *testing.T, got, want string, format string, args ...interface{}) {
	t.Helper()

	var a, b interface{}
	if err := json.Unmarshal([]byte(got), &a); err != nil {
		t.Fatalf("invalid JSON %q: %s", got, err)
	}
	if err := json.Unmarshal([]byte(want), &b); err != nil {
		t.Fatalf("invalid JSON %q: %s", want, err)
	}
	if !reflect.DeepEqual(a, b) {
		prefix := fmt.Sprintf(format, args...)
		t.Errorf(prefix+"\n   got: %s\n  want: %s", got, want)
	}
}

func timeoutContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
