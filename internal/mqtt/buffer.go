package mqtt

// outboundMsg is a serialized message queued for replay after
// reconnection.
type outboundMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// replayQueue holds messages produced while the broker is unreachable.
// Bounded; when full the oldest message is evicted so a long outage
// keeps the most recent readings. Not safe for concurrent use — the
// caller must synchronize.
type replayQueue struct {
	msgs    []outboundMsg
	limit   int
	dropped int
}

func newReplayQueue(limit int) *replayQueue {
	return &replayQueue{limit: limit}
}

// push queues a message and reports whether an older one was evicted
// to make room.
func (q *replayQueue) push(msg outboundMsg) bool {
	evicted := false
	if len(q.msgs) == q.limit {
		copy(q.msgs, q.msgs[1:])
		q.msgs = q.msgs[:q.limit-1]
		q.dropped++
		evicted = true
	}
	q.msgs = append(q.msgs, msg)
	return evicted
}

// drain returns all queued messages oldest-first and empties the queue.
func (q *replayQueue) drain() []outboundMsg {
	if len(q.msgs) == 0 {
		return nil
	}
	out := q.msgs
	q.msgs = nil
	q.dropped = 0
	return out
}

func (q *replayQueue) len() int {
	return len(q.msgs)
}
