package webchannel

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Descriptor is the handshake description of one remote object.
type Descriptor struct {
	Methods    []MethodInfo
	Properties []PropertyInfo
	Signals    []SignalInfo
}

// MethodInfo describes a declared method.
type MethodInfo struct {
	Name string
}

// SignalInfo describes a declared signal.
type SignalInfo struct {
	Name string
}

// PropertyInfo describes a declared property.
type PropertyInfo struct {
	// Index is the property index exactly as the host sent it.
	Index json.RawMessage
	// Key is Index as text, used to address the property cache.
	Key string
	// Name and NotifySignal are only known when the host uses the full
	// [index, name, [notifySignal, notifyIndex], value] layout.
	Name         string
	NotifySignal string
	// Value is the initial value, nil when the host did not supply one.
	Value json.RawMessage
}

type rawDescriptor struct {
	Methods    [][]json.RawMessage `json:"methods"`
	Properties [][]json.RawMessage `json:"properties"`
	Signals    [][]json.RawMessage `json:"signals"`
}

func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var raw rawDescriptor
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	desc := Descriptor{}
	for _, entry := range raw.Methods {
		name, err := entryName(entry)
		if err != nil {
			return fmt.Errorf("invalid method descriptor: %s", err)
		}
		desc.Methods = append(desc.Methods, MethodInfo{Name: name})
	}
	for _, entry := range raw.Signals {
		name, err := entryName(entry)
		if err != nil {
			return fmt.Errorf("invalid signal descriptor: %s", err)
		}
		desc.Signals = append(desc.Signals, SignalInfo{Name: name})
	}
	for _, entry := range raw.Properties {
		prop, err := parseProperty(entry)
		if err != nil {
			return fmt.Errorf("invalid property descriptor: %s", err)
		}
		desc.Properties = append(desc.Properties, prop)
	}
	*d = desc
	return nil
}

func (d Descriptor) MarshalJSON() ([]byte, error) {
	raw := rawDescriptor{
		Methods:    [][]json.RawMessage{},
		Properties: [][]json.RawMessage{},
		Signals:    [][]json.RawMessage{},
	}
	for i, m := range d.Methods {
		name, _ := json.Marshal(m.Name)
		raw.Methods = append(raw.Methods, []json.RawMessage{name, json.RawMessage(strconv.Itoa(i))})
	}
	for i, s := range d.Signals {
		name, _ := json.Marshal(s.Name)
		raw.Signals = append(raw.Signals, []json.RawMessage{name, json.RawMessage(strconv.Itoa(i))})
	}
	for _, p := range d.Properties {
		entry := []json.RawMessage{p.Index}
		if p.Name != "" {
			name, _ := json.Marshal(p.Name)
			notifyName, _ := json.Marshal(p.NotifySignal)
			entry = append(entry, name, json.RawMessage(fmt.Sprintf("[%s,0]", notifyName)))
		}
		if p.Value != nil {
			entry = append(entry, p.Value)
		} else if p.Name != "" {
			entry = append(entry, json.RawMessage("null"))
		}
		raw.Properties = append(raw.Properties, entry)
	}
	return json.Marshal(raw)
}

func entryName(entry []json.RawMessage) (string, error) {
	if len(entry) == 0 {
		return "", fmt.Errorf("empty entry")
	}
	var name string
	if err := json.Unmarshal(entry[0], &name); err != nil {
		return "", err
	}
	return name, nil
}

// parseProperty accepts [index], [index, value] and
// [index, name, [notifySignal, notifyIndex], value].
func parseProperty(entry []json.RawMessage) (PropertyInfo, error) {
	if len(entry) == 0 {
		return PropertyInfo{}, fmt.Errorf("empty entry")
	}
	key, err := propertyKey(entry[0])
	if err != nil {
		return PropertyInfo{}, err
	}
	prop := PropertyInfo{Index: entry[0], Key: key}
	switch {
	case len(entry) >= 4:
		if err := json.Unmarshal(entry[1], &prop.Name); err != nil {
			return PropertyInfo{}, fmt.Errorf("invalid property name: %s", err)
		}
		var notify []json.RawMessage
		if err := json.Unmarshal(entry[2], &notify); err == nil && len(notify) > 0 {
			// Notify signals may be declared by name or only by index.
			_ = json.Unmarshal(notify[0], &prop.NotifySignal)
		}
		prop.Value = entry[3]
	case len(entry) >= 2:
		prop.Value = entry[len(entry)-1]
	}
	return prop, nil
}

// propertyKey renders a property index as cache key text: numbers in their
// decimal form, strings as-is.
func propertyKey(index json.RawMessage) (string, error) {
	var key interface{}
	if err := json.Unmarshal(index, &key); err != nil {
		return "", err
	}
	switch k := key.(type) {
	case string:
		return k, nil
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("property index must be a number or string: %s", index)
}
