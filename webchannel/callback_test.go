package webchannel

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func rawArgs(args ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		out = append(out, json.RawMessage(a))
	}
	return out
}

func TestCallbackArgs(t *testing.T) {
	var got []interface{}
	record := func(args ...interface{}) {
		got = append([]interface{}(nil), args...)
	}

	tests := []struct {
		fn   interface{}
		args []json.RawMessage
		want []interface{}
	}{
		{
			func(a int, b string) { record(a, b) },
			rawArgs(`1`, `"x"`),
			[]interface{}{1, "x"},
		},
		{
			// Missing arguments are zero values.
			func(a int, b string) { record(a, b) },
			rawArgs(`1`),
			[]interface{}{1, ""},
		},
		{
			// Extra arguments are dropped.
			func(a int) { record(a) },
			rawArgs(`1`, `2`, `3`),
			[]interface{}{1},
		},
		{
			func(a int, rest ...string) { record(a, rest) },
			rawArgs(`1`, `"b"`, `"c"`),
			[]interface{}{1, []string{"b", "c"}},
		},
		{
			func(v map[string]bool) { record(v) },
			rawArgs(`{"ok":true}`),
			[]interface{}{map[string]bool{"ok": true}},
		},
	}

	for i, tc := range tests {
		got = nil
		cb, err := newCallback(tc.fn)
		if err != nil {
			t.Fatal(err)
		}
		if err := cb.call(tc.args); err != nil {
			t.Errorf("case %d: %s", i, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("case %d: got: %#v; want: %#v", i, got, tc.want)
		}
	}
}

func TestCallbackDecodeError(t *testing.T) {
	called := false
	cb, err := newCallback(func(int) { called = true })
	if err != nil {
		t.Fatal(err)
	}
	if err := cb.call(rawArgs(`"nope"`)); err == nil {
		t.Error("expected decode error")
	}
	if called {
		t.Error("callback called with undecodable argument")
	}
}

func TestNewCallbackInvalid(t *testing.T) {
	var nilFunc func(int)
	for _, fn := range []interface{}{nil, 1, "f", struct{}{}, nilFunc} {
		if _, err := newCallback(fn); !errors.Is(err, ErrInvalidCallback) {
			t.Errorf("%#v: got: %v; want: %v", fn, err, ErrInvalidCallback)
		}
	}
}
