package webchannel

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Helpers for JSON parsing

// isObject returns true if the message is a JSON object (starts with '{',
// spaces skipped).
func isObject(raw []byte) bool {
	for _, b := range raw {
		if isSpace(b) {
			continue
		}
		return b == '{'
	}
	return false
}

// isSpace returns true if the byte is considered a space in JSON syntax.
func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// NamedArg is one entry of a NamedArgs object.
type NamedArg struct {
	Name string
	Args []json.RawMessage
}

// NamedArgs is a JSON object of name -> argument list which keeps the order
// of its members, so signals coupled to a property update are emitted in the
// order the host listed them.
type NamedArgs []NamedArg

func (n NamedArgs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, arg := range n {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(arg.Name)
		if err != nil {
			return nil, err
		}
		args := arg.Args
		if args == nil {
			args = []json.RawMessage{}
		}
		value, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (n *NamedArgs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*n = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("signals must be an object, got: %s", data)
	}
	out := NamedArgs{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("invalid signal name: %v", tok)
		}
		var args []json.RawMessage
		if err := dec.Decode(&args); err != nil {
			return fmt.Errorf("invalid arguments for signal %q: %s", name, err)
		}
		out = append(out, NamedArg{Name: name, Args: args})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*n = out
	return nil
}
