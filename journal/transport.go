package journal

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vipnode/qwebchannel/webchannel"
)

var _ webchannel.Transport = &Recorder{}

// Transport wraps t so every message sent or received is appended to store
// under session. An empty session gets a fresh random id. Recording is best
// effort: store failures are logged and never fail the transport.
func Transport(t webchannel.Transport, store Store, session string) *Recorder {
	if session == "" {
		session = uuid.New().String()
	}
	return &Recorder{
		Transport: t,
		store:     store,
		session:   session,
	}
}

// Recorder is a webchannel.Transport that journals its traffic.
type Recorder struct {
	webchannel.Transport
	store   Store
	session string
	seq     atomic.Uint64
}

// Session returns the session id entries are recorded under.
func (r *Recorder) Session() string {
	return r.session
}

func (r *Recorder) record(dir Direction, data []byte) {
	entry := Entry{
		Session:   r.session,
		Seq:       r.seq.Add(1),
		Time:      time.Now(),
		Direction: dir,
		Data:      append([]byte(nil), data...),
	}
	if err := r.store.Append(entry); err != nil {
		logger.Warningf("Failed to record %s message %d of session %s: %s", dir, entry.Seq, r.session, err)
	}
}

func (r *Recorder) Send(data []byte) error {
	if err := r.Transport.Send(data); err != nil {
		return err
	}
	r.record(Sent, data)
	return nil
}

func (r *Recorder) Receive() ([]byte, error) {
	data, err := r.Transport.Receive()
	if err != nil {
		return nil, err
	}
	r.record(Received, data)
	return data, nil
}
