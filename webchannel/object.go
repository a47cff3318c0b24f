package webchannel

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// Service is anything that can run a remote method and wait for its result.
type Service interface {
	Call(ctx context.Context, result interface{}, method string, params ...interface{}) error
}

var _ Service = &Object{}

// Object is the local proxy of one remote object.
type Object struct {
	name       string
	descriptor Descriptor
	channel    *Channel

	methods map[string]struct{}
	signals map[string]*Signal

	mu          sync.RWMutex
	properties  map[string]*PropertyInfo
	cache       map[string]json.RawMessage
	connections map[string][]*Connection
}

// newObject builds the proxy for name and registers it on the channel.
func newObject(name string, desc Descriptor, c *Channel) *Object {
	obj := &Object{
		name:        name,
		descriptor:  desc,
		channel:     c,
		methods:     map[string]struct{}{},
		signals:     map[string]*Signal{},
		properties:  map[string]*PropertyInfo{},
		cache:       map[string]json.RawMessage{},
		connections: map[string][]*Connection{},
	}
	c.register(obj)

	for _, m := range desc.Methods {
		obj.methods[m.Name] = struct{}{}
	}
	for _, s := range desc.Signals {
		obj.signals[s.Name] = &Signal{object: obj, name: s.Name}
	}
	return obj
}

// unwrapProperties makes the declared properties readable and writable.
func (o *Object) unwrapProperties() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.descriptor.Properties {
		prop := &o.descriptor.Properties[i]
		o.properties[prop.Key] = prop
		if prop.Name != "" {
			if _, taken := o.properties[prop.Name]; !taken {
				o.properties[prop.Name] = prop
			}
		}
	}
}

// Name returns the name the host registered the object under.
func (o *Object) Name() string {
	return o.name
}

// Methods returns the declared method names in descriptor order.
func (o *Object) Methods() []string {
	names := make([]string, 0, len(o.descriptor.Methods))
	for _, m := range o.descriptor.Methods {
		names = append(names, m.Name)
	}
	return names
}

// Signals returns the declared signal names in descriptor order.
func (o *Object) Signals() []string {
	names := make([]string, 0, len(o.descriptor.Signals))
	for _, s := range o.descriptor.Signals {
		names = append(names, s.Name)
	}
	return names
}

// Properties returns the declared properties in descriptor order.
func (o *Object) Properties() []PropertyInfo {
	return append([]PropertyInfo(nil), o.descriptor.Properties...)
}

// ----------------------------------------------------------------------
// Properties
// ----------------------------------------------------------------------

func (o *Object) property(key string) (*PropertyInfo, error) {
	prop, ok := o.properties[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s::%s", ErrUnknownProperty, o.name, key)
	}
	return prop, nil
}

// Property returns the last value the host pushed for the property, or its
// initial value if nothing was pushed yet. key is the declared index or, when
// the host sent it, the property name.
func (o *Object) Property(key string) (json.RawMessage, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	prop, err := o.property(key)
	if err != nil {
		return nil, err
	}
	if value, ok := o.cache[prop.Key]; ok {
		return value, nil
	}
	return prop.Value, nil
}

// ReadProperty decodes the current property value into v.
func (o *Object) ReadProperty(key string, v interface{}) error {
	value, err := o.Property(key)
	if err != nil {
		return err
	}
	if value == nil {
		return fmt.Errorf("%w: %s::%s", ErrUndefinedProperty, o.name, key)
	}
	return json.Unmarshal(value, v)
}

// SetProperty asks the host to write the property. The local value does not
// change until the host pushes a propertyUpdate. Properties declared without
// an initial value are skipped with a warning.
func (o *Object) SetProperty(key string, value interface{}) error {
	o.mu.RLock()
	prop, err := o.property(key)
	o.mu.RUnlock()
	if err != nil {
		return err
	}
	if prop.Value == nil {
		logger.Warningf("Property setter called with undefined value for property: %s", key)
		return nil
	}
	return o.channel.Exec(&SetPropertyMessage{
		Object:   o.name,
		Property: prop.Index,
		Value:    value,
	}, nil)
}

// propertyUpdate stores pushed values, then emits the signals the host
// coupled to them.
func (o *Object) propertyUpdate(signals NamedArgs, properties map[string]json.RawMessage) {
	o.mu.Lock()
	for key, value := range properties {
		o.cache[key] = value
	}
	o.mu.Unlock()

	for _, signal := range signals {
		o.signalEmitted(signal.Name, signal.Args)
	}
}

// ----------------------------------------------------------------------
// Signals
// ----------------------------------------------------------------------

// Connection is one listener attached to a signal. It identifies the
// listener for Disconnect.
type Connection struct {
	object  *Object
	signal  string
	handler *callback
}

// Signal returns the signal name of the connection.
func (conn *Connection) Signal() string {
	return conn.signal
}

// Disconnect detaches the listener.
func (conn *Connection) Disconnect() error {
	return conn.object.Disconnect(conn.signal, conn)
}

// Signal is the facade of a declared remote signal.
type Signal struct {
	object *Object
	name   string
}

// Name returns the signal name.
func (s *Signal) Name() string {
	return s.name
}

// Connect attaches callback to the signal, see Object.Connect.
func (s *Signal) Connect(callback interface{}) (*Connection, error) {
	return s.object.Connect(s.name, callback)
}

// Disconnect detaches a connection made with Connect.
func (s *Signal) Disconnect(conn *Connection) error {
	return s.object.Disconnect(s.name, conn)
}

// Signal returns the facade of a declared signal.
func (o *Object) Signal(name string) (*Signal, bool) {
	s, ok := o.signals[name]
	return s, ok
}

// Connect attaches callback to the named signal. callback must be a func;
// the signal arguments are decoded into its parameters positionally. The
// same func may be connected more than once and is then invoked once per
// connection. Every Connect on a declared signal sends a connectToSignal
// request, even when other listeners are already attached. The connection is
// registered even when that request fails to send.
func (o *Object) Connect(name string, callback interface{}) (*Connection, error) {
	handler, err := newCallback(callback)
	if err != nil {
		logger.Errorf("Bad callback given to connect to signal %s", name)
		return nil, err
	}
	conn := &Connection{object: o, signal: name, handler: handler}

	o.mu.Lock()
	o.connections[name] = append(o.connections[name], conn)
	o.mu.Unlock()

	if _, ok := o.signals[name]; !ok {
		// Not a declared signal, nothing to subscribe to on the host.
		return conn, nil
	}
	return conn, o.channel.Exec(&ConnectToSignalMessage{
		Object: o.name,
		Signal: name,
	}, nil)
}

// Disconnect removes conn from the named signal. Every Disconnect on a
// declared signal sends a disconnectFromSignal request.
func (o *Object) Disconnect(name string, conn *Connection) error {
	if conn == nil {
		logger.Errorf("Bad callback given to disconnect from signal %s", name)
		return ErrInvalidCallback
	}

	o.mu.Lock()
	conns := o.connections[name]
	idx := -1
	for i, c := range conns {
		if c == conn {
			idx = i
			break
		}
	}
	if idx == -1 {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s::%s", ErrNotConnected, o.name, name)
	}
	remaining := make([]*Connection, 0, len(conns)-1)
	remaining = append(remaining, conns[:idx]...)
	o.connections[name] = append(remaining, conns[idx+1:]...)
	o.mu.Unlock()

	if _, ok := o.signals[name]; !ok {
		return nil
	}
	return o.channel.Exec(&DisconnectFromSignalMessage{
		Object: o.name,
		Signal: name,
	}, nil)
}

// Listeners returns the number of connections on the named signal.
func (o *Object) Listeners(name string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.connections[name])
}

// signalEmitted invokes every listener of the signal in connection order.
func (o *Object) signalEmitted(name string, args []json.RawMessage) {
	o.mu.RLock()
	conns := append([]*Connection(nil), o.connections[name]...)
	o.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.handler.call(args); err != nil {
			logger.Warningf("Listener of %s::%s failed: %s", o.name, name, err)
		}
	}
}

// ----------------------------------------------------------------------
// Methods
// ----------------------------------------------------------------------

// Invoke calls a remote method without waiting. Func arguments are taken out
// of the argument list and the last one becomes the completion callback,
// which receives the decoded return value when the response carries one. A
// nil func argument returns ErrInvalidCallback and nothing is sent.
func (o *Object) Invoke(method string, args ...interface{}) error {
	if _, ok := o.methods[method]; !ok {
		return fmt.Errorf("%w: %s::%s", ErrUnknownMethod, o.name, method)
	}

	params := make([]interface{}, 0, len(args))
	var done *callback
	for _, arg := range args {
		if arg != nil && reflect.TypeOf(arg).Kind() == reflect.Func {
			cb, err := newCallback(arg)
			if err != nil {
				logger.Errorf("Bad callback given to invoke %s::%s", o.name, method)
				return err
			}
			done = cb
			continue
		}
		params = append(params, arg)
	}

	return o.channel.Exec(&InvokeMethodMessage{
		Object: o.name,
		Method: method,
		Args:   params,
	}, func(data json.RawMessage) {
		if data == nil || done == nil {
			return
		}
		if err := done.call([]json.RawMessage{data}); err != nil {
			logger.Warningf("Callback of %s::%s failed: %s", o.name, method, err)
		}
	})
}

// Call invokes a remote method and blocks until the response arrives or ctx
// is done, decoding the return value into result. It must not be called from
// a callback or listener, since those run on the goroutine that delivers
// responses.
func (o *Object) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	if _, ok := o.methods[method]; !ok {
		return fmt.Errorf("%w: %s::%s", ErrUnknownMethod, o.name, method)
	}
	if params == nil {
		params = []interface{}{}
	}

	respCh := make(chan json.RawMessage, 1)
	id, err := o.channel.exec(&InvokeMethodMessage{
		Object: o.name,
		Method: method,
		Args:   params,
	}, func(data json.RawMessage) {
		respCh <- data
	})
	if err != nil {
		return err
	}

	select {
	case data := <-respCh:
		if result == nil || len(data) == 0 || string(data) == "null" {
			// No result
			return nil
		}
		if err := json.Unmarshal(data, result); err != nil {
			return ErrResponseDecode{Method: method, Cause: err}
		}
		return nil
	case <-ctx.Done():
		o.channel.Forget(id)
		return ctx.Err()
	}
}

// ErrResponseDecode is returned by Call when the return value does not fit
// the result type.
type ErrResponseDecode struct {
	Method string
	Cause  error
}

func (err ErrResponseDecode) Error() string {
	return fmt.Sprintf("failed to decode response of %s: %s", err.Method, err.Cause)
}

func (err ErrResponseDecode) Unwrap() error {
	return err.Cause
}
