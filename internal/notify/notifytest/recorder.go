// Package notifytest provides an in-memory notifier for tests.
package notifytest

import (
	"context"
	"sync"
)

// Message is a recorded notification
type Message struct {
	RecipientID string
	Text        string
}

// Recorder keeps every notification in memory. Fail makes deliveries to a recipient fail.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	failFor  map[string]error
}

func NewRecorder() *Recorder {
	return &Recorder{failFor: make(map[string]error)}
}

func (r *Recorder) Fail(recipientID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFor[recipientID] = err
}

func (r *Recorder) Notify(_ context.Context, recipientID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.failFor[recipientID]; err != nil {
		return err
	}
	r.messages = append(r.messages, Message{RecipientID: recipientID, Text: text})
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Reset forgets the recorded messages
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
