package fakehost

import (
	"encoding/json"
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

var typeOfError = reflect.TypeOf((*error)(nil)).Elem()

// methodName is the name a Go method is published under: the first letter
// lowercased, the way Qt slots are usually named.
func methodName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}

// methodErrPos returns the return value index position of an error type for
// supported return layouts: (), (interface{}), (error), (interface{}, error)
func methodErrPos(methodType reflect.Type) (int, bool) {
	switch methodType.NumOut() {
	case 0:
		return -1, true
	case 1:
		if methodType.Out(0) == typeOfError {
			return 0, true
		}
		return -1, true
	case 2:
		if methodType.Out(1) == typeOfError {
			return 1, true
		}
	}
	return -1, false
}

// methods returns the published methods of receiver, in the order reflection
// lists them.
func methods(receiver interface{}) ([]method, error) {
	if receiver == nil {
		return nil, nil
	}
	kind := reflect.TypeOf(receiver)
	val := reflect.ValueOf(receiver)

	var out []method
	for i := 0; i < kind.NumMethod(); i++ {
		m := kind.Method(i)
		if m.PkgPath != "" {
			// Skip unexported methods
			continue
		}

		argTypes := make([]reflect.Type, 0, m.Type.NumIn()-1)
		ok := true
		for pos := 1; pos < m.Type.NumIn(); pos++ { // Skip receiver
			argType := m.Type.In(pos)
			if !isExportedOrBuiltin(argType) {
				ok = false
				break
			}
			argTypes = append(argTypes, argType)
		}
		if !ok {
			continue
		}

		errPos, ok := methodErrPos(m.Type)
		if !ok {
			return nil, fmt.Errorf("unsupported return values in method: %s", m.Name)
		}
		out = append(out, method{
			Name:     methodName(m.Name),
			Receiver: val,
			Method:   m,
			ArgTypes: argTypes,
			ErrPos:   errPos,
		})
	}
	return out, nil
}

// method is a published method of a registered object.
type method struct {
	Name     string
	Receiver reflect.Value
	Method   reflect.Method
	ArgTypes []reflect.Type
	ErrPos   int
}

// callJSON decodes positional args into the method's parameters and calls
// it. Missing args are zero values, extra args are dropped.
func (m *method) callJSON(args []interface{}) (interface{}, error) {
	arguments := []reflect.Value{m.Receiver}
	for i, argType := range m.ArgTypes {
		value := reflect.New(argType)
		if i < len(args) {
			raw, err := json.Marshal(args[i])
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(raw, value.Interface()); err != nil {
				return nil, fmt.Errorf("argument %d of %s: %s", i, m.Name, err)
			}
		}
		arguments = append(arguments, value.Elem())
	}

	reply := m.Method.Func.Call(arguments)

	if len(reply) == 0 {
		return nil, nil
	}
	if m.ErrPos >= 0 && !reply[m.ErrPos].IsNil() {
		return nil, reply[m.ErrPos].Interface().(error)
	}
	if m.ErrPos == 0 {
		return nil, nil
	}
	return reply[0].Interface(), nil
}
