package journal

import (
	"reflect"
	"testing"
	"time"
)

// TestSuite runs a suite of tests against a store implementation.
func TestSuite(t *testing.T, newStore func() Store) {
	t.Helper()

	t.Run("Append", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		if err := s.Append(Entry{Seq: 1}); err != ErrMalformedEntry {
			t.Errorf("expected malformed entry error, got: %v", err)
		}
		if _, err := s.Entries("nope"); err != ErrUnknownSession {
			t.Errorf("expected unknown session error, got: %v", err)
		}

		now := time.Now().UTC().Truncate(time.Millisecond)
		want := []Entry{
			{Session: "a", Seq: 1, Time: now, Direction: Sent, Data: []byte(`{"type":3,"id":0}`)},
			{Session: "a", Seq: 2, Time: now.Add(time.Millisecond), Direction: Received, Data: []byte(`{"type":10,"id":0,"data":{}}`)},
			{Session: "a", Seq: 10, Time: now.Add(2 * time.Millisecond), Direction: Sent, Data: []byte(`{"type":4}`)},
		}
		// Out of order appends come back in sequence order.
		for _, i := range []int{2, 0, 1} {
			if err := s.Append(want[i]); err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
		}
		got, err := s.Entries("a")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if len(got) != len(want) {
			t.Fatalf("got %d entries; want %d", len(got), len(want))
		}
		for i := range want {
			if !got[i].Time.Equal(want[i].Time) {
				t.Errorf("entry %d: got time %s; want %s", i, got[i].Time, want[i].Time)
			}
			got[i].Time = want[i].Time
			if !reflect.DeepEqual(got[i], want[i]) {
				t.Errorf("entry %d:\n   got: %+v\n  want: %+v", i, got[i], want[i])
			}
		}
	})

	t.Run("Sessions", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		if sessions, err := s.Sessions(); err != nil || len(sessions) != 0 {
			t.Errorf("expected no sessions, got: %v, %v", sessions, err)
		}

		start := time.Now().UTC().Truncate(time.Millisecond)
		for i, id := range []string{"later", "earlier", "later"} {
			started := start
			if id == "later" {
				started = start.Add(time.Second)
			}
			entry := Entry{Session: id, Seq: uint64(i + 1), Time: started, Direction: Sent, Data: []byte(`{}`)}
			if err := s.Append(entry); err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
		}

		sessions, err := s.Sessions()
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		var ids []string
		var counts []int
		for _, session := range sessions {
			ids = append(ids, session.ID)
			counts = append(counts, session.Entries)
		}
		if want := []string{"earlier", "later"}; !reflect.DeepEqual(ids, want) {
			t.Errorf("got: %q; want: %q", ids, want)
		}
		if want := []int{1, 2}; !reflect.DeepEqual(counts, want) {
			t.Errorf("got: %v; want: %v", counts, want)
		}
		if !sessions[0].Started.Equal(start) {
			t.Errorf("got start %s; want %s", sessions[0].Started, start)
		}
	})
}
