// Package fakehost is a minimal webchannel host used to test clients without
// a Qt process. It publishes Go values as remote objects: their exported
// methods become invokable, with the first letter lowercased.
package fakehost

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/vipnode/qwebchannel/webchannel"
)

// Property is a published property.
type Property struct {
	Name         string
	NotifySignal string
	Value        interface{}
}

// Object describes what gets published under a name.
type Object struct {
	Receiver   interface{}
	Properties []Property
	Signals    []string
}

type object struct {
	name       string
	methods    map[string]method
	descriptor webchannel.Descriptor
	values     []interface{}
	props      []Property
}

// New returns a Host answering requests arriving over t.
func New(t webchannel.Transport) *Host {
	return &Host{
		transport:     t,
		objects:       map[string]*object{},
		subscriptions: map[string]int{},
	}
}

// Host plays the host side of a webchannel.
type Host struct {
	transport webchannel.Transport

	mu            sync.Mutex
	objects       map[string]*object
	subscriptions map[string]int
	received      []webchannel.Message
}

// Register publishes obj under name. Notify signals of properties are
// declared as signals too.
func (h *Host) Register(name string, obj Object) error {
	ms, err := methods(obj.Receiver)
	if err != nil {
		return err
	}

	o := &object{
		name:    name,
		methods: map[string]method{},
		props:   obj.Properties,
	}
	for _, m := range ms {
		o.methods[m.Name] = m
		o.descriptor.Methods = append(o.descriptor.Methods, webchannel.MethodInfo{Name: m.Name})
	}
	signals := append([]string(nil), obj.Signals...)
	for i, p := range obj.Properties {
		value, err := json.Marshal(p.Value)
		if err != nil {
			return err
		}
		if p.Value == nil {
			value = nil
		}
		o.values = append(o.values, p.Value)
		o.descriptor.Properties = append(o.descriptor.Properties, webchannel.PropertyInfo{
			Index:        json.RawMessage(strconv.Itoa(i)),
			Key:          strconv.Itoa(i),
			Name:         p.Name,
			NotifySignal: p.NotifySignal,
			Value:        value,
		})
		if p.NotifySignal != "" && !contains(signals, p.NotifySignal) {
			signals = append(signals, p.NotifySignal)
		}
	}
	for _, s := range signals {
		o.descriptor.Signals = append(o.descriptor.Signals, webchannel.SignalInfo{Name: s})
	}

	h.mu.Lock()
	h.objects[name] = o
	h.mu.Unlock()
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Serve handles inbound messages until the transport fails. Errors about
// single messages are logged and skipped.
func (h *Host) Serve() error {
	for {
		data, err := h.transport.Receive()
		if err != nil {
			return err
		}
		if err := h.HandleMessage(data); err != nil {
			logger.Warningf("Host.Serve(): Dropping message: %s", err)
		}
	}
}

// Close closes the transport.
func (h *Host) Close() error {
	return h.transport.Close()
}

// HandleMessage answers one client message.
func (h *Host) HandleMessage(data []byte) error {
	msg, err := webchannel.DecodeMessage(data)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.received = append(h.received, msg)
	h.mu.Unlock()

	switch m := msg.(type) {
	case *webchannel.InitMessage:
		return h.reply(m.ID, h.descriptors())
	case *webchannel.InvokeMethodMessage:
		return h.invoke(m)
	case *webchannel.SetPropertyMessage:
		return h.setProperty(m)
	case *webchannel.ConnectToSignalMessage:
		h.mu.Lock()
		h.subscriptions[m.Object+"::"+m.Signal]++
		h.mu.Unlock()
		return h.reply(m.ID, nil)
	case *webchannel.DisconnectFromSignalMessage:
		h.mu.Lock()
		if key := m.Object + "::" + m.Signal; h.subscriptions[key] > 0 {
			h.subscriptions[key]--
		}
		h.mu.Unlock()
		return h.reply(m.ID, nil)
	case *webchannel.IdleMessage:
		return h.reply(m.ID, nil)
	case *webchannel.DebugMessage:
		return h.reply(m.ID, nil)
	}
	return fmt.Errorf("fakehost: unexpected %s message", msg.Type())
}

func (h *Host) descriptors() map[string]webchannel.Descriptor {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]webchannel.Descriptor, len(h.objects))
	for name, o := range h.objects {
		out[name] = o.descriptor
	}
	return out
}

// reply sends a response when the request carried an id.
func (h *Host) reply(id *int, data interface{}) error {
	if id == nil {
		return nil
	}
	resp := &webchannel.ResponseMessage{ID: id}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		resp.Data = raw
	}
	return h.send(resp)
}

func (h *Host) send(msg webchannel.Message) error {
	data, err := webchannel.EncodeMessage(msg)
	if err != nil {
		return err
	}
	return h.transport.Send(data)
}

func (h *Host) object(name string) (*object, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.objects[name]
	if !ok {
		return nil, fmt.Errorf("fakehost: unknown object %q", name)
	}
	return o, nil
}

func (h *Host) invoke(msg *webchannel.InvokeMethodMessage) error {
	o, err := h.object(msg.Object)
	if err != nil {
		return err
	}
	m, ok := o.methods[msg.Method]
	if !ok {
		return fmt.Errorf("fakehost: unknown method %s::%s", msg.Object, msg.Method)
	}
	result, callErr := m.callJSON(msg.Args)
	// Failed calls are still answered so the client does not wait forever.
	if err := h.reply(msg.ID, result); err != nil {
		return err
	}
	return callErr
}

func (h *Host) setProperty(msg *webchannel.SetPropertyMessage) error {
	o, err := h.object(msg.Object)
	if err != nil {
		return err
	}
	var index int
	if err := json.Unmarshal(msg.Property, &index); err != nil || index < 0 || index >= len(o.props) {
		return fmt.Errorf("fakehost: unknown property %s::%s", msg.Object, msg.Property)
	}
	if err := h.pushProperty(o, index, msg.Value); err != nil {
		return err
	}
	return h.reply(msg.ID, nil)
}

// pushProperty stores value and notifies the client with a propertyUpdate.
func (h *Host) pushProperty(o *object, index int, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	h.mu.Lock()
	o.values[index] = value
	h.mu.Unlock()

	update := webchannel.PropertyUpdate{
		Object:     o.name,
		Signals:    webchannel.NamedArgs{},
		Properties: map[string]json.RawMessage{strconv.Itoa(index): raw},
	}
	if notify := o.props[index].NotifySignal; notify != "" {
		update.Signals = append(update.Signals, webchannel.NamedArg{Name: notify, Args: []json.RawMessage{raw}})
	}
	return h.send(&webchannel.PropertyUpdateMessage{Data: []webchannel.PropertyUpdate{update}})
}

// SetProperty changes a property on the host side and pushes the update.
func (h *Host) SetProperty(objectName, property string, value interface{}) error {
	o, err := h.object(objectName)
	if err != nil {
		return err
	}
	for i, p := range o.props {
		if p.Name == property || strconv.Itoa(i) == property {
			return h.pushProperty(o, i, value)
		}
	}
	return fmt.Errorf("fakehost: unknown property %s::%s", objectName, property)
}

// PropertyValue returns the current host-side value of a property.
func (h *Host) PropertyValue(objectName, property string) (interface{}, error) {
	o, err := h.object(objectName)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, p := range o.props {
		if p.Name == property || strconv.Itoa(i) == property {
			return o.values[i], nil
		}
	}
	return nil, fmt.Errorf("fakehost: unknown property %s::%s", objectName, property)
}

// Emit sends a signal to the client. Like Qt, nothing is sent unless the
// client subscribed to the signal. It reports whether the signal was sent.
func (h *Host) Emit(objectName, signal string, args ...interface{}) (bool, error) {
	if h.Subscribers(objectName, signal) == 0 {
		return false, nil
	}
	msg := &webchannel.SignalMessage{Object: objectName, Signal: signal, Args: []json.RawMessage{}}
	for _, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return false, err
		}
		msg.Args = append(msg.Args, raw)
	}
	return true, h.send(msg)
}

// Subscribers returns how many connectToSignal requests for the signal are
// not yet matched by a disconnectFromSignal.
func (h *Host) Subscribers(objectName, signal string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscriptions[objectName+"::"+signal]
}

// Received returns every message the host got, in arrival order.
func (h *Host) Received() []webchannel.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]webchannel.Message(nil), h.received...)
}

// Objects returns the sorted names of the published objects.
func (h *Host) Objects() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.objects))
	for name := range h.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
