package webchannel

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MessageType is the integer tag carried in the "type" field of every
// message.
type MessageType int

const (
	TypeSignal MessageType = iota + 1
	TypePropertyUpdate
	TypeInit
	TypeIdle
	TypeDebug
	TypeInvokeMethod
	TypeConnectToSignal
	TypeDisconnectFromSignal
	TypeSetProperty
	TypeResponse
)

var typeNames = map[MessageType]string{
	TypeSignal:               "signal",
	TypePropertyUpdate:       "propertyUpdate",
	TypeInit:                 "init",
	TypeIdle:                 "idle",
	TypeDebug:                "debug",
	TypeInvokeMethod:         "invokeMethod",
	TypeConnectToSignal:      "connectToSignal",
	TypeDisconnectFromSignal: "disconnectFromSignal",
	TypeSetProperty:          "setProperty",
	TypeResponse:             "response",
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(%d)", int(t))
}

// Message is one of the message structs in this package. The set is closed:
// only types declared here implement it.
type Message interface {
	Type() MessageType
	isMessage()
}

// Request is a message this side sends, which Exec can tag with a
// correlation id.
type Request interface {
	Message
	setID(id int)
}

// SignalMessage is pushed by the host when a subscribed signal is emitted.
type SignalMessage struct {
	Object string            `json:"object"`
	Signal string            `json:"signal"`
	Args   []json.RawMessage `json:"args"`
}

// PropertyUpdateMessage is pushed by the host when properties change. ID is
// only set when the host piggybacks a reply on the update.
type PropertyUpdateMessage struct {
	ID   *int             `json:"id,omitempty"`
	Data []PropertyUpdate `json:"data"`
}

// PropertyUpdate is the per-object record inside a PropertyUpdateMessage.
type PropertyUpdate struct {
	Object     string                     `json:"object"`
	Signals    NamedArgs                  `json:"signals"`
	Properties map[string]json.RawMessage `json:"properties"`
}

// InitMessage starts the handshake.
type InitMessage struct {
	ID *int `json:"id,omitempty"`
}

// IdleMessage tells the host this side has nothing queued.
type IdleMessage struct {
	ID *int `json:"id,omitempty"`
}

// DebugMessage carries arbitrary diagnostic data to the host.
type DebugMessage struct {
	ID   *int        `json:"id,omitempty"`
	Data interface{} `json:"data"`
}

// InvokeMethodMessage calls a method on a remote object.
type InvokeMethodMessage struct {
	ID     *int          `json:"id,omitempty"`
	Object string        `json:"object"`
	Method string        `json:"method"`
	Args   []interface{} `json:"args"`
}

// ConnectToSignalMessage subscribes to a remote signal.
type ConnectToSignalMessage struct {
	ID     *int   `json:"id,omitempty"`
	Object string `json:"object"`
	Signal string `json:"signal"`
}

// DisconnectFromSignalMessage unsubscribes from a remote signal.
type DisconnectFromSignalMessage struct {
	ID     *int   `json:"id,omitempty"`
	Object string `json:"object"`
	Signal string `json:"signal"`
}

// SetPropertyMessage asks the host to write a property. Property echoes the
// index exactly as the descriptor declared it.
type SetPropertyMessage struct {
	ID       *int            `json:"id,omitempty"`
	Object   string          `json:"object"`
	Property json.RawMessage `json:"property"`
	Value    interface{}     `json:"value"`
}

// ResponseMessage answers a request. Data is nil when the host omitted it.
type ResponseMessage struct {
	ID   *int            `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (SignalMessage) Type() MessageType               { return TypeSignal }
func (PropertyUpdateMessage) Type() MessageType       { return TypePropertyUpdate }
func (InitMessage) Type() MessageType                 { return TypeInit }
func (IdleMessage) Type() MessageType                 { return TypeIdle }
func (DebugMessage) Type() MessageType                { return TypeDebug }
func (InvokeMethodMessage) Type() MessageType         { return TypeInvokeMethod }
func (ConnectToSignalMessage) Type() MessageType      { return TypeConnectToSignal }
func (DisconnectFromSignalMessage) Type() MessageType { return TypeDisconnectFromSignal }
func (SetPropertyMessage) Type() MessageType          { return TypeSetProperty }
func (ResponseMessage) Type() MessageType             { return TypeResponse }

func (SignalMessage) isMessage()               {}
func (PropertyUpdateMessage) isMessage()       {}
func (InitMessage) isMessage()                 {}
func (IdleMessage) isMessage()                 {}
func (DebugMessage) isMessage()                {}
func (InvokeMethodMessage) isMessage()         {}
func (ConnectToSignalMessage) isMessage()      {}
func (DisconnectFromSignalMessage) isMessage() {}
func (SetPropertyMessage) isMessage()          {}
func (ResponseMessage) isMessage()             {}

func (m *InitMessage) setID(id int)                 { m.ID = &id }
func (m *IdleMessage) setID(id int)                 { m.ID = &id }
func (m *DebugMessage) setID(id int)                { m.ID = &id }
func (m *InvokeMethodMessage) setID(id int)         { m.ID = &id }
func (m *ConnectToSignalMessage) setID(id int)      { m.ID = &id }
func (m *DisconnectFromSignalMessage) setID(id int) { m.ID = &id }
func (m *SetPropertyMessage) setID(id int)          { m.ID = &id }

// The alias types drop the MarshalJSON methods below so tagged() can encode
// the plain struct.
type (
	signalAlias               SignalMessage
	propertyUpdateAlias       PropertyUpdateMessage
	initAlias                 InitMessage
	idleAlias                 IdleMessage
	debugAlias                DebugMessage
	invokeMethodAlias         InvokeMethodMessage
	connectToSignalAlias      ConnectToSignalMessage
	disconnectFromSignalAlias DisconnectFromSignalMessage
	setPropertyAlias          SetPropertyMessage
	responseAlias             ResponseMessage
)

func (m SignalMessage) MarshalJSON() ([]byte, error) {
	return tagged(TypeSignal, signalAlias(m))
}

func (m PropertyUpdateMessage) MarshalJSON() ([]byte, error) {
	return tagged(TypePropertyUpdate, propertyUpdateAlias(m))
}

func (m InitMessage) MarshalJSON() ([]byte, error) {
	return tagged(TypeInit, initAlias(m))
}

func (m IdleMessage) MarshalJSON() ([]byte, error) {
	return tagged(TypeIdle, idleAlias(m))
}

func (m DebugMessage) MarshalJSON() ([]byte, error) {
	return tagged(TypeDebug, debugAlias(m))
}

func (m InvokeMethodMessage) MarshalJSON() ([]byte, error) {
	return tagged(TypeInvokeMethod, invokeMethodAlias(m))
}

func (m ConnectToSignalMessage) MarshalJSON() ([]byte, error) {
	return tagged(TypeConnectToSignal, connectToSignalAlias(m))
}

func (m DisconnectFromSignalMessage) MarshalJSON() ([]byte, error) {
	return tagged(TypeDisconnectFromSignal, disconnectFromSignalAlias(m))
}

func (m SetPropertyMessage) MarshalJSON() ([]byte, error) {
	return tagged(TypeSetProperty, setPropertyAlias(m))
}

func (m ResponseMessage) MarshalJSON() ([]byte, error) {
	return tagged(TypeResponse, responseAlias(m))
}

// tagged encodes v, which must encode to a JSON object, with a leading
// "type" member.
func tagged(t MessageType, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"type":%d`, int(t))
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type envelope struct {
	Type MessageType `json:"type"`
}

// EncodeMessage returns the wire encoding of msg.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a wire payload into the message struct matching its
// type tag. Errors wrap ErrMalformedMessage.
func DecodeMessage(data []byte) (Message, error) {
	if !isObject(data) {
		return nil, fmt.Errorf("%w: not a JSON object: %s", ErrMalformedMessage, data)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}

	var msg Message
	switch env.Type {
	case TypeSignal:
		msg = &SignalMessage{}
	case TypePropertyUpdate:
		msg = &PropertyUpdateMessage{}
	case TypeInit:
		msg = &InitMessage{}
	case TypeIdle:
		msg = &IdleMessage{}
	case TypeDebug:
		msg = &DebugMessage{}
	case TypeInvokeMethod:
		msg = &InvokeMethodMessage{}
	case TypeConnectToSignal:
		msg = &ConnectToSignalMessage{}
	case TypeDisconnectFromSignal:
		msg = &DisconnectFromSignalMessage{}
	case TypeSetProperty:
		msg = &SetPropertyMessage{}
	case TypeResponse:
		msg = &ResponseMessage{}
	default:
		return nil, fmt.Errorf("%w: unknown type %d", ErrMalformedMessage, int(env.Type))
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s message: %s", ErrMalformedMessage, env.Type, err)
	}
	return msg, nil
}
