package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vipnode/qwebchannel/internal/fakehost"
	"github.com/vipnode/qwebchannel/webchannel"
	"github.com/vipnode/qwebchannel/ws"
	"github.com/vipnode/qwebchannel/ws/gorilla"
)

type Bridge struct{}

func (Bridge) Greet(name string) string { return "hello " + name }

func (Bridge) Add(a, b int) int { return a + b }

// syncBuffer is written by listeners on the Serve goroutine while the test
// reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testHost struct {
	mu    sync.Mutex
	hosts []*fakehost.Host
	cfg   Config
}

// lastHost returns the host serving the most recent connection.
func (h *testHost) lastHost() *fakehost.Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.hosts) == 0 {
		return nil
	}
	return h.hosts[len(h.hosts)-1]
}

func startTestHost(t *testing.T) *testHost {
	t.Helper()
	th := &testHost{}
	srv := httptest.NewServer(ws.Handler(&gorilla.Upgrader{}, func(tr webchannel.Transport) error {
		host := fakehost.New(tr)
		if err := host.Register("bridge", fakehost.Object{
			Receiver: Bridge{},
			Properties: []fakehost.Property{
				{Name: "mode", NotifySignal: "modeChanged", Value: "settings"},
				{Name: "pending"},
			},
			Signals: []string{"status_update"},
		}); err != nil {
			return err
		}
		th.mu.Lock()
		th.hosts = append(th.hosts, host)
		th.mu.Unlock()
		return host.Serve()
	}))
	t.Cleanup(srv.Close)

	th.cfg = defaultConfig()
	th.cfg.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	th.cfg.JournalDir = t.TempDir()
	return th
}

func TestInspect(t *testing.T) {
	th := startTestHost(t)
	var out bytes.Buffer
	if err := subcommand(context.Background(), "inspect", Options{}, th.cfg, &out); err != nil {
		t.Fatal(err)
	}
	want := `bridge
  methods: add, greet
  signals: status_update, modeChanged
  properties:
    mode = "settings" (notify: modeChanged)
    pending = null
`
	if got := out.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestCall(t *testing.T) {
	th := startTestHost(t)

	tests := []struct {
		method string
		params []string
		want   string
	}{
		{"greet", []string{"world"}, "\"hello world\"\n"},
		{"greet", []string{`"quoted"`}, "\"hello quoted\"\n"},
		{"add", []string{"2", "3"}, "5\n"},
	}
	for _, tc := range tests {
		var options Options
		options.Call.Args.Object = "bridge"
		options.Call.Args.Method = tc.method
		options.Call.Args.Params = tc.params

		var out bytes.Buffer
		if err := subcommand(context.Background(), "call", options, th.cfg, &out); err != nil {
			t.Fatal(err)
		}
		if got := out.String(); got != tc.want {
			t.Errorf("%s %v: got: %q; want: %q", tc.method, tc.params, got, tc.want)
		}
	}

	var options Options
	options.Call.Args.Object = "bridge"
	options.Call.Args.Method = "nope"
	err := subcommand(context.Background(), "call", options, th.cfg, &bytes.Buffer{})
	var explained ErrExplain
	if !errors.As(err, &explained) || !errors.Is(err, webchannel.ErrUnknownMethod) {
		t.Errorf("expected explained unknown method error, got: %v", err)
	}

	options.Call.Args.Object = "nobody"
	if err := subcommand(context.Background(), "call", options, th.cfg, &bytes.Buffer{}); !errors.As(err, &explained) {
		t.Errorf("expected explained unknown object error, got: %v", err)
	}
}

func TestGetSet(t *testing.T) {
	th := startTestHost(t)

	var options Options
	options.Get.Args.Object = "bridge"
	options.Get.Args.Property = "mode"
	var out bytes.Buffer
	if err := subcommand(context.Background(), "get", options, th.cfg, &out); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "\"settings\"\n" {
		t.Errorf("got: %q", got)
	}

	options.Set.Args.Object = "bridge"
	options.Set.Args.Property = "mode"
	options.Set.Args.Value = "advanced"
	if err := subcommand(context.Background(), "set", options, th.cfg, &out); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		value, err := th.lastHost().PropertyValue("bridge", "mode")
		if err != nil {
			t.Fatal(err)
		}
		if value == "advanced" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("host never saw the write, value: %v", value)
		}
		time.Sleep(time.Millisecond)
	}

	options.Set.Args.Object = "nobody"
	var explained ErrExplain
	if err := subcommand(context.Background(), "set", options, th.cfg, &out); !errors.As(err, &explained) {
		t.Errorf("expected explained error, got: %v", err)
	}
}

func TestWatch(t *testing.T) {
	th := startTestHost(t)

	var options Options
	options.Watch.Match = []string{`Changed$`}
	options.Watch.Args.Signals = []string{"bridge.status_update"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- subcommand(ctx, "watch", options, th.cfg, out)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		host := th.lastHost()
		if host != nil && host.Subscribers("bridge", "status_update") == 1 && host.Subscribers("bridge", "modeChanged") == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for subscriptions")
		}
		time.Sleep(time.Millisecond)
	}

	host := th.lastHost()
	if _, err := host.Emit("bridge", "status_update", "busy", 3); err != nil {
		t.Fatal(err)
	}
	if err := host.SetProperty("bridge", "mode", "advanced"); err != nil {
		t.Fatal(err)
	}

	want := "bridge.status_update \"busy\" 3\nbridge.modeChanged \"advanced\"\n  bridge.mode = \"advanced\"\n"
	for out.String() != want {
		if time.Now().After(deadline) {
			t.Fatalf("got:\n%s\nwant:\n%s", out.String(), want)
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("unexpected error: %s", err)
	}
}

func TestWatchNoMatch(t *testing.T) {
	th := startTestHost(t)
	var options Options
	options.Watch.Args.Signals = []string{"bridge.nope"}
	err := subcommand(context.Background(), "watch", options, th.cfg, &bytes.Buffer{})
	var explained ErrExplain
	if !errors.As(err, &explained) {
		t.Errorf("expected explained error, got: %v", err)
	}

	options.Watch.Match = []string{`(`}
	if err := subcommand(context.Background(), "watch", options, th.cfg, &bytes.Buffer{}); !errors.As(err, &explained) {
		t.Errorf("expected explained error for bad pattern, got: %v", err)
	}
}

func TestJournal(t *testing.T) {
	th := startTestHost(t)
	th.cfg.Journal = true

	var options Options
	options.Call.Args.Object = "bridge"
	options.Call.Args.Method = "add"
	options.Call.Args.Params = []string{"1", "1"}
	if err := subcommand(context.Background(), "call", options, th.cfg, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}

	var list bytes.Buffer
	if err := subcommand(context.Background(), "journal", options, th.cfg, &list); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(list.String()), "\n")
	if len(lines) != 1 || !strings.HasSuffix(lines[0], "4 messages") {
		t.Fatalf("unexpected session list: %q", list.String())
	}

	options.Journal.Args.Session = strings.Fields(lines[0])[0]
	var entries bytes.Buffer
	if err := subcommand(context.Background(), "journal", options, th.cfg, &entries); err != nil {
		t.Fatal(err)
	}
	got := strings.Split(strings.TrimSpace(entries.String()), "\n")
	if len(got) != 4 {
		t.Fatalf("got %d entries:\n%s", len(got), entries.String())
	}
	for i, want := range []string{`-> {"type":3,"id":0}`, `<- {"type":10,"id":0,`, `-> {"type":6,"id":1,`, `<- {"type":10,"id":1,"data":2}`} {
		if !strings.Contains(got[i], want) {
			t.Errorf("entry %d: %q does not contain %q", i, got[i], want)
		}
	}

	options.Journal.Args.Session = "nope"
	var explained ErrExplain
	if err := subcommand(context.Background(), "journal", options, th.cfg, &bytes.Buffer{}); !errors.As(err, &explained) {
		t.Errorf("expected explained error, got: %v", err)
	}
}

func TestWatchProtocolViolation(t *testing.T) {
	// The host answers init, then replies to a request nobody sent.
	srv := httptest.NewServer(ws.Handler(&gorilla.Upgrader{}, func(tr webchannel.Transport) error {
		if _, err := tr.Receive(); err != nil {
			return err
		}
		if err := tr.Send([]byte(`{"type":10,"id":0,"data":{"bridge":{"methods":[],"properties":[],"signals":[["status_update",0]]}}}`)); err != nil {
			return err
		}
		// connectToSignal
		if _, err := tr.Receive(); err != nil {
			return err
		}
		if err := tr.Send([]byte(`{"type":10,"id":999}`)); err != nil {
			return err
		}
		for {
			if _, err := tr.Receive(); err != nil {
				return err
			}
		}
	}))
	defer srv.Close()

	cfg := defaultConfig()
	cfg.URL = "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := subcommand(ctx, "watch", Options{}, cfg, &bytes.Buffer{})

	var protoErr *webchannel.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected the protocol violation to end the command, got: %v", err)
	}
	if protoErr.ID != 999 {
		t.Errorf("got id %d; want 999", protoErr.ID)
	}
	if ctx.Err() != nil {
		t.Error("command only returned after the timeout")
	}

	var explained ErrExplain
	if !errors.As(explainError(err), &explained) || explained.Cause != err {
		t.Errorf("protocol violation not explained: %v", explainError(err))
	}
}
