package journal_test

import (
	"testing"

	"github.com/vipnode/qwebchannel/journal"
	"github.com/vipnode/qwebchannel/journal/memory"
	"github.com/vipnode/qwebchannel/webchannel"
)

func TestRecorder(t *testing.T) {
	store := memory.New()
	client, host := webchannel.Pipe()
	defer client.Close()

	rec := journal.Transport(client, store, "")
	if rec.Session() == "" {
		t.Fatal("missing session id")
	}
	if other := journal.Transport(client, store, ""); other.Session() == rec.Session() {
		t.Errorf("session ids collide: %s", rec.Session())
	}

	if err := rec.Send([]byte(`{"type":3,"id":0}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := host.Receive(); err != nil {
		t.Fatal(err)
	}
	if err := host.Send([]byte(`{"type":10,"id":0,"data":{}}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Receive(); err != nil {
		t.Fatal(err)
	}

	entries, err := store.Entries(rec.Session())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries; want 2", len(entries))
	}
	want := []struct {
		seq  uint64
		dir  journal.Direction
		data string
	}{
		{1, journal.Sent, `{"type":3,"id":0}`},
		{2, journal.Received, `{"type":10,"id":0,"data":{}}`},
	}
	for i, w := range want {
		e := entries[i]
		if e.Seq != w.seq || e.Direction != w.dir || string(e.Data) != w.data {
			t.Errorf("entry %d: got: %d %s %s; want: %d %s %s", i, e.Seq, e.Direction, e.Data, w.seq, w.dir, w.data)
		}
	}

	// Failed sends are not recorded.
	host.Close()
	if err := rec.Send([]byte(`{"type":4}`)); err == nil {
		t.Error("expected send error on closed transport")
	}
	if entries, _ := store.Entries(rec.Session()); len(entries) != 2 {
		t.Errorf("got %d entries; want 2", len(entries))
	}
}
