package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/grafana/regexp"
	"github.com/vipnode/qwebchannel/journal"
	"github.com/vipnode/qwebchannel/webchannel"
)

func lookupObject(c *webchannel.Channel, name string) (*webchannel.Object, error) {
	obj, ok := c.Object(name)
	if !ok {
		return nil, ErrExplain{
			fmt.Errorf("unknown object: %q", name),
			fmt.Sprintf("The host publishes: %s. Run `qwebchannel inspect` for details.", strings.Join(c.Objects(), ", ")),
		}
	}
	return obj, nil
}

// parseValue reads a command line value as JSON, falling back to a plain
// string so `call obj greet world` does not need quoting.
func parseValue(s string) interface{} {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return s
}

func runInspect(ctx context.Context, c *webchannel.Channel, out io.Writer) error {
	for _, name := range c.Objects() {
		obj, _ := c.Object(name)
		fmt.Fprintln(out, name)
		if methods := obj.Methods(); len(methods) > 0 {
			fmt.Fprintf(out, "  methods: %s\n", strings.Join(methods, ", "))
		}
		if signals := obj.Signals(); len(signals) > 0 {
			fmt.Fprintf(out, "  signals: %s\n", strings.Join(signals, ", "))
		}
		props := obj.Properties()
		if len(props) == 0 {
			continue
		}
		fmt.Fprintln(out, "  properties:")
		for _, p := range props {
			label := p.Key
			if p.Name != "" {
				label = p.Name
			}
			value, _ := obj.Property(p.Key)
			if value == nil {
				value = json.RawMessage("undefined")
			}
			if p.NotifySignal != "" {
				fmt.Fprintf(out, "    %s = %s (notify: %s)\n", label, value, p.NotifySignal)
			} else {
				fmt.Fprintf(out, "    %s = %s\n", label, value)
			}
		}
	}
	return nil
}

func runCall(ctx context.Context, c *webchannel.Channel, out io.Writer, timeout time.Duration, object, method string, args []string) error {
	obj, err := lookupObject(c, object)
	if err != nil {
		return err
	}
	params := make([]interface{}, 0, len(args))
	for _, arg := range args {
		params = append(params, parseValue(arg))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var result json.RawMessage
	err = obj.Call(ctx, &result, method, params...)
	if errors.Is(err, webchannel.ErrUnknownMethod) {
		return ErrExplain{err, fmt.Sprintf("%s has methods: %s.", object, strings.Join(obj.Methods(), ", "))}
	}
	if err == context.DeadlineExceeded {
		return ErrExplain{err, fmt.Sprintf("No response from %s.%s within %s. Use --timeout to wait longer.", object, method, timeout)}
	}
	if err != nil {
		return err
	}
	if len(result) > 0 {
		fmt.Fprintf(out, "%s\n", result)
	}
	return nil
}

func runGet(ctx context.Context, c *webchannel.Channel, out io.Writer, object, property string) error {
	obj, err := lookupObject(c, object)
	if err != nil {
		return err
	}
	value, err := obj.Property(property)
	if err != nil {
		return ErrExplain{err, "Properties can be addressed by name or by index. Run `qwebchannel inspect` to list them."}
	}
	if value == nil {
		value = json.RawMessage("undefined")
	}
	fmt.Fprintf(out, "%s\n", value)
	return nil
}

func runSet(ctx context.Context, c *webchannel.Channel, object, property, value string) error {
	obj, err := lookupObject(c, object)
	if err != nil {
		return err
	}
	current, err := obj.Property(property)
	if err != nil {
		return ErrExplain{err, "Properties can be addressed by name or by index. Run `qwebchannel inspect` to list them."}
	}
	if current == nil {
		logger.Warningf("Property %s.%s has no initial value, the host will not be asked to change it.", object, property)
		return nil
	}
	return obj.SetProperty(property, parseValue(value))
}

// signalMatcher selects object.signal names by exact name or by pattern. An
// empty matcher selects everything.
type signalMatcher struct {
	names    map[string]bool
	patterns []*regexp.Regexp
}

func newSignalMatcher(names []string, patterns []string) (*signalMatcher, error) {
	m := &signalMatcher{names: map[string]bool{}}
	for _, name := range names {
		m.names[name] = true
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, ErrExplain{err, fmt.Sprintf("Invalid --match pattern %q.", p)}
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

func (m *signalMatcher) Match(name string) bool {
	if len(m.names) == 0 && len(m.patterns) == 0 {
		return true
	}
	if m.names[name] {
		return true
	}
	for _, re := range m.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func formatArgs(args []json.RawMessage) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, string(arg))
	}
	return strings.Join(parts, " ")
}

// runWatch prints every matching signal emission, and the properties it
// notifies about, until ctx is done.
func runWatch(ctx context.Context, c *webchannel.Channel, out io.Writer, matcher *signalMatcher) error {
	watching := 0
	for _, name := range c.Objects() {
		obj, _ := c.Object(name)
		for _, signal := range obj.Signals() {
			fullName := name + "." + signal
			if !matcher.Match(fullName) {
				continue
			}
			var notified []webchannel.PropertyInfo
			for _, p := range obj.Properties() {
				if p.NotifySignal == signal {
					notified = append(notified, p)
				}
			}
			obj, objName := obj, name
			if _, err := obj.Connect(signal, func(args ...json.RawMessage) {
				fmt.Fprintf(out, "%s %s\n", fullName, formatArgs(args))
				for _, p := range notified {
					value, _ := obj.Property(p.Key)
					fmt.Fprintf(out, "  %s.%s = %s\n", objName, p.Name, value)
				}
			}); err != nil {
				return err
			}
			watching++
		}
	}
	if watching == 0 {
		return ErrExplain{errors.New("no signals matched"), "Run `qwebchannel inspect` to list the signals of each object."}
	}
	logger.Infof("Watching %d signals.", watching)
	<-ctx.Done()
	return nil
}

func runJournal(store journal.Store, out io.Writer, session string) error {
	if session == "" {
		sessions, err := store.Sessions()
		if err != nil {
			return err
		}
		for _, s := range sessions {
			fmt.Fprintf(out, "%s  %s  %d messages\n", s.ID, s.Started.Format(time.RFC3339), s.Entries)
		}
		return nil
	}

	entries, err := store.Entries(session)
	if err == journal.ErrUnknownSession {
		return ErrExplain{err, "Run `qwebchannel journal` without arguments to list the recorded sessions."}
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%d %s %s %s\n", e.Seq, e.Time.Format(time.RFC3339Nano), e.Direction.Arrow(), e.Data)
	}
	return nil
}
