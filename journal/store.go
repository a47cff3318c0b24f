package journal

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownSession is returned when a session has no recorded entries.
	ErrUnknownSession = errors.New("unknown journal session")

	// ErrMalformedEntry is returned by Append for entries without a session.
	ErrMalformedEntry = errors.New("malformed journal entry")
)

// Direction is which way a recorded message travelled.
type Direction int

const (
	Sent Direction = iota + 1
	Received
)

func (d Direction) String() string {
	switch d {
	case Sent:
		return "sent"
	case Received:
		return "received"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Arrow is the short form used when printing entries.
func (d Direction) Arrow() string {
	if d == Sent {
		return "->"
	}
	return "<-"
}

// Entry is one recorded message.
type Entry struct {
	Session   string    `json:"session"`
	Seq       uint64    `json:"seq"`
	Time      time.Time `json:"time"`
	Direction Direction `json:"direction"`
	Data      []byte    `json:"data"`
}

// Session describes a recorded session.
type Session struct {
	ID      string    `json:"id"`
	Started time.Time `json:"started"`
	Entries int       `json:"entries"`
}

// Store persists journal entries.
type Store interface {
	// Append records an entry, creating its session on first use.
	Append(Entry) error
	// Sessions returns every session, oldest first.
	Sessions() ([]Session, error)
	// Entries returns the entries of a session in sequence order.
	Entries(session string) ([]Entry, error)
	// Close releases the store.
	Close() error
}
