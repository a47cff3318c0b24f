package webchannel

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// callback is a func value that is called with positional JSON arguments.
type callback struct {
	fn       reflect.Value
	argTypes []reflect.Type
	variadic bool
}

// newCallback validates fn as a non-nil func.
func newCallback(fn interface{}) (*callback, error) {
	if fn == nil {
		return nil, ErrInvalidCallback
	}
	val := reflect.ValueOf(fn)
	if val.Kind() != reflect.Func || val.IsNil() {
		return nil, fmt.Errorf("%w: %T is not a func", ErrInvalidCallback, fn)
	}
	fnType := val.Type()
	argTypes := make([]reflect.Type, 0, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		argTypes = append(argTypes, fnType.In(i))
	}
	return &callback{
		fn:       val,
		argTypes: argTypes,
		variadic: fnType.IsVariadic(),
	}, nil
}

// call decodes args into the func's parameters and calls it. Missing
// arguments are zero values and extra arguments are dropped, unless the func
// is variadic, in which case the extras fill the variadic parameter.
func (cb *callback) call(args []json.RawMessage) error {
	values, err := positionalArgs(args, cb.argTypes, cb.variadic)
	if err != nil {
		return err
	}
	cb.fn.Call(values)
	return nil
}

// positionalArgs decodes each positional JSON argument into the reflected
// value of its type.
func positionalArgs(args []json.RawMessage, types []reflect.Type, variadic bool) ([]reflect.Value, error) {
	fixed := len(types)
	var extraType reflect.Type
	if variadic {
		fixed--
		extraType = types[fixed].Elem()
	}

	values := make([]reflect.Value, 0, len(args))
	for i := 0; i < fixed; i++ {
		if i >= len(args) {
			values = append(values, reflect.Zero(types[i]))
			continue
		}
		v, err := decodeArg(args[i], types[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %s", i, err)
		}
		values = append(values, v)
	}
	if !variadic {
		return values, nil
	}
	for i := fixed; i < len(args); i++ {
		v, err := decodeArg(args[i], extraType)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %s", i, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func decodeArg(raw json.RawMessage, t reflect.Type) (reflect.Value, error) {
	ptr := reflect.New(t)
	if len(raw) == 0 {
		return ptr.Elem(), nil
	}
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return ptr.Elem(), nil
}
