package webchannel

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

const (
	// MinID is the first correlation id, and the one the counter wraps to.
	MinID = 0
	// MaxID is the last correlation id before the counter wraps.
	MaxID = math.MaxInt32
)

// ResponseHandler receives the data of the response matching a request.
// data is nil when the response carried no data field.
type ResponseHandler func(data json.RawMessage)

type pendingCall struct {
	callback  ResponseHandler
	timestamp time.Time
}

type pendingItem struct {
	id        int
	timestamp time.Time
}

type pendingQueue []pendingItem

func (p pendingQueue) Len() int {
	return len(p)
}

func (p pendingQueue) Less(i, j int) bool {
	if p[i].timestamp.Equal(p[j].timestamp) {
		return p[i].id < p[j].id
	}
	return p[i].timestamp.Before(p[j].timestamp)
}

func (p pendingQueue) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
}

func pendingOldest(pending map[int]pendingCall, num int) pendingQueue {
	if num > len(pending) {
		num = len(pending)
	}
	queue := make(pendingQueue, 0, len(pending))
	for id, p := range pending {
		queue = append(queue, pendingItem{
			id, p.timestamp,
		})
	}
	sort.Sort(queue)
	return queue[:num]
}

// cleanPending removes num oldest entries, must hold the c.mu lock.
func (c *Channel) cleanPending(num int) {
	for _, item := range pendingOldest(c.pending, num) {
		logger.Warningf("Discarding pending call %d, no response after %s", item.id, time.Since(item.timestamp))
		delete(c.pending, item.id)
	}
}

// nextID returns the next correlation id that has no pending call, must hold
// the c.mu lock.
func (c *Channel) nextID() int {
	for {
		id := c.execID
		if c.execID >= MaxID {
			c.execID = MinID
		} else {
			c.execID++
		}
		if _, ok := c.pending[id]; !ok {
			return id
		}
	}
}

// Forget drops the pending call for id without invoking it. A response that
// arrives for it later is reported as a ProtocolError.
func (c *Channel) Forget(id int) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Pending returns the number of requests still waiting for a response.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
