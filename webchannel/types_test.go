package webchannel

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestEncodeMessage(t *testing.T) {
	id := 7
	tests := []struct {
		msg  Message
		want string
	}{
		{&InitMessage{}, `{"type":3}`},
		{&InitMessage{ID: &id}, `{"type":3,"id":7}`},
		{IdleMessage{}, `{"type":4}`},
		{&DebugMessage{Data: []int{1}}, `{"type":5,"data":[1]}`},
		{&InvokeMethodMessage{ID: &id, Object: "calc", Method: "add", Args: []interface{}{2, 3}}, `{"type":6,"id":7,"object":"calc","method":"add","args":[2,3]}`},
		{&ConnectToSignalMessage{Object: "calc", Signal: "done"}, `{"type":7,"object":"calc","signal":"done"}`},
		{&DisconnectFromSignalMessage{Object: "calc", Signal: "done"}, `{"type":8,"object":"calc","signal":"done"}`},
		{&SetPropertyMessage{Object: "calc", Property: json.RawMessage(`1`), Value: "x"}, `{"type":9,"object":"calc","property":1,"value":"x"}`},
		{&ResponseMessage{ID: &id}, `{"type":10,"id":7}`},
		{&ResponseMessage{ID: &id, Data: json.RawMessage(`5`)}, `{"type":10,"id":7,"data":5}`},
		{&SignalMessage{Object: "calc", Signal: "done", Args: []json.RawMessage{json.RawMessage(`"x"`)}}, `{"type":1,"object":"calc","signal":"done","args":["x"]}`},
	}
	for _, tc := range tests {
		got, err := EncodeMessage(tc.msg)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != tc.want {
			t.Errorf("%T:\n   got: %s\n  want: %s", tc.msg, got, tc.want)
		}
	}
}

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage([]byte(` {"type":2,"id":3,"data":[{"object":"o","signals":{"b":[1],"a":[]},"properties":{"0":true}}]}`))
	if err != nil {
		t.Fatal(err)
	}
	update, ok := msg.(*PropertyUpdateMessage)
	if !ok {
		t.Fatalf("wrong message type: %T", msg)
	}
	if update.ID == nil || *update.ID != 3 {
		t.Errorf("wrong id: %v", update.ID)
	}
	if len(update.Data) != 1 {
		t.Fatalf("wrong number of updates: %d", len(update.Data))
	}

	var names []string
	for _, s := range update.Data[0].Signals {
		names = append(names, s.Name)
	}
	if want := []string{"b", "a"}; !reflect.DeepEqual(names, want) {
		t.Errorf("signal order not kept: got: %q; want: %q", names, want)
	}
	if got := string(update.Data[0].Properties["0"]); got != "true" {
		t.Errorf("got: %s; want: true", got)
	}

	resp, err := DecodeMessage([]byte(`{"type":10,"id":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if data := resp.(*ResponseMessage).Data; data != nil {
		t.Errorf("missing data decoded as %q", data)
	}

	for _, bad := range []string{``, `null`, `"x"`, `{"type":0}`, `{"type":11}`, `{"type":2,"data":[{"signals":[]}]}`} {
		if _, err := DecodeMessage([]byte(bad)); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("%q: got: %v; want: %v", bad, err, ErrMalformedMessage)
		}
	}
}

func TestMessageTypeString(t *testing.T) {
	if got := TypeConnectToSignal.String(); got != "connectToSignal" {
		t.Errorf("got: %q", got)
	}
	if got := MessageType(42).String(); got != "MessageType(42)" {
		t.Errorf("got: %q", got)
	}
}

func TestNamedArgs(t *testing.T) {
	in := `{"z":[1,"a"],"m":[],"a":[null]}`
	var args NamedArgs
	if err := json.Unmarshal([]byte(in), &args); err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != in {
		t.Errorf("got: %s; want: %s", out, in)
	}

	if err := json.Unmarshal([]byte(`null`), &args); err != nil || args != nil {
		t.Errorf("got: %v, %v; want nil", args, err)
	}
	if out, _ := json.Marshal(NamedArgs{}); string(out) != `{}` {
		t.Errorf("got: %s; want: {}", out)
	}
}
