package webchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

// New returns a Channel over t and starts the init handshake. onInit, if
// given, is called once all remote objects are registered. Inbound traffic,
// including the handshake reply, is only processed once Serve runs (or
// HandleMessage is fed by the caller). A nil transport, including a nil
// pointer behind the interface, returns ErrNoTransport.
func New(t Transport, onInit func(*Channel)) (*Channel, error) {
	if isNil(t) {
		logger.Error("The webchannel expects a transport object with a send function, given is: nil")
		return nil, ErrNoTransport
	}
	c := &Channel{
		transport: t,
		onInit:    onInit,
		pending:   map[int]pendingCall{},
		objects:   map[string]*Object{},
		ready:     make(chan struct{}),
	}
	if err := c.Exec(&InitMessage{}, c.handleInit); err != nil {
		return nil, err
	}
	return c, nil
}

// isNil reports whether t is nil or a nil pointer, map, chan or func behind
// the interface.
func isNil(t Transport) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Channel multiplexes all traffic with the host over one Transport. It holds
// the pending-call table and the registry of remote objects.
type Channel struct {
	// PendingLimit is the number of unanswered requests to hold before the
	// oldest get discarded. Zero means no limit.
	PendingLimit int
	// PendingDiscard is the number of oldest requests that get discarded
	// when PendingLimit is reached.
	PendingDiscard int
	// OnError, if set, is called by Serve with every error HandleMessage
	// returns, after it is logged. A *ProtocolError means the host answered
	// a request this side never sent. Set it before calling Serve.
	OnError func(error)

	transport Transport
	onInit    func(*Channel)

	mu      sync.Mutex
	execID  int
	pending map[int]pendingCall

	objMu   sync.RWMutex
	objects map[string]*Object

	ready   chan struct{}
	initErr error
}

// Send encodes payload, unless it is already encoded, and hands it to the
// transport. []byte, string and json.RawMessage are sent as-is.
func (c *Channel) Send(payload interface{}) error {
	var data []byte
	var err error
	switch p := payload.(type) {
	case []byte:
		data = p
	case json.RawMessage:
		data = p
	case string:
		data = []byte(p)
	case Message:
		data, err = EncodeMessage(p)
	default:
		data, err = json.Marshal(p)
	}
	if err != nil {
		return err
	}
	return c.transport.Send(data)
}

// Exec sends req. Without a callback the request is sent as-is. With a
// callback, req is tagged with a fresh correlation id and callback fires
// exactly once when the matching response arrives. There is no timeout; see
// PendingLimit and Forget.
func (c *Channel) Exec(req Request, callback ResponseHandler) error {
	_, err := c.exec(req, callback)
	return err
}

func (c *Channel) exec(req Request, callback ResponseHandler) (int, error) {
	if callback == nil {
		return 0, c.Send(req)
	}

	c.mu.Lock()
	if c.PendingLimit > 0 && len(c.pending) >= c.PendingLimit && c.PendingDiscard > 0 {
		c.cleanPending(c.PendingDiscard)
	}
	id := c.nextID()
	c.pending[id] = pendingCall{
		callback:  callback,
		timestamp: time.Now(),
	}
	c.mu.Unlock()

	req.setID(id)
	if err := c.Send(req); err != nil {
		c.Forget(id)
		return id, err
	}
	return id, nil
}

// Debug sends a diagnostic message to the host.
func (c *Channel) Debug(data interface{}) error {
	return c.Send(&DebugMessage{Data: data})
}

// Idle tells the host this side has no more queued work.
func (c *Channel) Idle() error {
	return c.Send(&IdleMessage{})
}

// Serve reads messages from the transport and handles them one at a time
// until the transport fails. Errors about individual messages are logged,
// passed to OnError and skipped. It returns the transport error, io.EOF on a
// clean close.
func (c *Channel) Serve() error {
	for {
		data, err := c.transport.Receive()
		if err != nil {
			return err
		}
		if err := c.HandleMessage(data); err != nil {
			var protoErr *ProtocolError
			if errors.As(err, &protoErr) {
				logger.Errorf("Channel.Serve(): Protocol violation: %s", err)
			} else {
				logger.Warningf("Channel.Serve(): Dropping message: %s", err)
			}
			if c.OnError != nil {
				c.OnError(err)
			}
		}
	}
}

// Close closes the transport.
func (c *Channel) Close() error {
	return c.transport.Close()
}

// HandleMessage routes one inbound message. Unknown target objects are
// logged and ignored. Malformed or unexpected messages return an error
// wrapping ErrMalformedMessage or ErrUnexpectedMessage; responses for ids
// without a pending call return a *ProtocolError. The channel state is
// unaffected by any of these errors.
func (c *Channel) HandleMessage(data []byte) error {
	msg, err := DecodeMessage(data)
	if err != nil {
		return err
	}

	switch m := msg.(type) {
	case *SignalMessage:
		c.handleSignal(m)
		return nil
	case *ResponseMessage:
		return c.handleResponse(m)
	case *PropertyUpdateMessage:
		return c.handlePropertyUpdate(m)
	case *InitMessage, *IdleMessage, *DebugMessage, *InvokeMethodMessage,
		*ConnectToSignalMessage, *DisconnectFromSignalMessage, *SetPropertyMessage:
		return fmt.Errorf("%w: %s", ErrUnexpectedMessage, msg.Type())
	}
	return fmt.Errorf("%w: unhandled message type %s", ErrMalformedMessage, msg.Type())
}

func (c *Channel) handleSignal(msg *SignalMessage) {
	obj, ok := c.Object(msg.Object)
	if !ok {
		logger.Warningf("Unhandled signal: %s::%s", msg.Object, msg.Signal)
		return
	}
	obj.signalEmitted(msg.Signal, msg.Args)
}

func (c *Channel) handleResponse(msg *ResponseMessage) error {
	if msg.ID == nil {
		return fmt.Errorf("%w: response without id", ErrMalformedMessage)
	}
	return c.resolve(*msg.ID, TypeResponse, msg.Data)
}

func (c *Channel) handlePropertyUpdate(msg *PropertyUpdateMessage) error {
	for _, update := range msg.Data {
		obj, ok := c.Object(update.Object)
		if !ok {
			logger.Warningf("Unhandled property update: %s", update.Object)
			continue
		}
		obj.propertyUpdate(update.Signals, update.Properties)
	}
	if msg.ID == nil {
		return nil
	}
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return err
	}
	return c.resolve(*msg.ID, TypePropertyUpdate, data)
}

// resolve removes the pending call for id and invokes it with data.
func (c *Channel) resolve(id int, t MessageType, data json.RawMessage) error {
	c.mu.Lock()
	call, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return &ProtocolError{ID: id, Type: t}
	}
	call.callback(data)
	return nil
}

func (c *Channel) handleInit(data json.RawMessage) {
	defer close(c.ready)

	var descriptors map[string]Descriptor
	if err := json.Unmarshal(data, &descriptors); err != nil {
		c.initErr = ErrInitFailed{err}
		logger.Errorf("Invalid init response: %s", err)
		return
	}
	for name, desc := range descriptors {
		newObject(name, desc, c)
	}
	// Properties are unwrapped once every object exists.
	for _, name := range c.Objects() {
		obj, _ := c.Object(name)
		obj.unwrapProperties()
	}
	if c.onInit != nil {
		c.onInit(c)
	}
}

// Ready is closed once the init response has been handled.
func (c *Channel) Ready() <-chan struct{} {
	return c.ready
}

// WaitReady blocks until the init response has been handled or ctx is done.
// It must not be called from the goroutine running Serve.
func (c *Channel) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return c.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Object returns the remote object registered under name.
func (c *Channel) Object(name string) (*Object, bool) {
	c.objMu.RLock()
	defer c.objMu.RUnlock()
	obj, ok := c.objects[name]
	return obj, ok
}

// Objects returns the sorted names of all registered objects.
func (c *Channel) Objects() []string {
	c.objMu.RLock()
	defer c.objMu.RUnlock()
	names := make([]string, 0, len(c.objects))
	for name := range c.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Channel) register(obj *Object) {
	c.objMu.Lock()
	c.objects[obj.name] = obj
	c.objMu.Unlock()
}

// IsMessageError reports whether err is about a single inbound message
// rather than the transport, so a caller feeding HandleMessage can keep
// going.
func IsMessageError(err error) bool {
	var protoErr *ProtocolError
	return errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrUnexpectedMessage) || errors.As(err, &protoErr)
}
