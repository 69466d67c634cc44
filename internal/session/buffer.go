package session

import "sync"

// MaxBufferMessages is the number of recent relayed messages retained per
// session for attachment to abuse reports.
const MaxBufferMessages = 5

// LoggedMessage is a single relayed message kept in the ring buffer.
type LoggedMessage struct {
	From    string `json:"from"`
	Text    string `json:"text"`
	Flagged bool   `json:"flagged,omitempty"` // carried a toxicity warning
	Ts      int64  `json:"ts"`
}

// MessageLog keeps the last few messages of each session in memory.
// It is goroutine-safe and uses a ring buffer per session.
type MessageLog struct {
	mu      sync.RWMutex
	buffers map[string]*ringBuffer
}

type ringBuffer struct {
	items []LoggedMessage
	pos   int
	count int
}

// NewMessageLog creates an empty message log.
func NewMessageLog() *MessageLog {
	return &MessageLog{buffers: make(map[string]*ringBuffer)}
}

// Add appends a message to the session's ring buffer, overwriting the
// oldest entry once the buffer is full.
func (ml *MessageLog) Add(sessionID string, msg LoggedMessage) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	rb, ok := ml.buffers[sessionID]
	if !ok {
		rb = &ringBuffer{items: make([]LoggedMessage, MaxBufferMessages)}
		ml.buffers[sessionID] = rb
	}

	rb.items[rb.pos] = msg
	rb.pos = (rb.pos + 1) % MaxBufferMessages
	if rb.count < MaxBufferMessages {
		rb.count++
	}
}

// Recent returns the session's last messages in chronological order.
func (ml *MessageLog) Recent(sessionID string) []LoggedMessage {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	rb, ok := ml.buffers[sessionID]
	if !ok {
		return []LoggedMessage{}
	}

	result := make([]LoggedMessage, rb.count)
	start := (rb.pos - rb.count + MaxBufferMessages) % MaxBufferMessages
	for i := 0; i < rb.count; i++ {
		result[i] = rb.items[(start+i)%MaxBufferMessages]
	}
	return result
}

// Drop deletes the session's buffer once the history is no longer needed.
func (ml *MessageLog) Drop(sessionID string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	delete(ml.buffers, sessionID)
}
