// Package reconcile keeps a client's visible message list consistent with
// server truth. Sends are displayed optimistically the instant the user
// submits them; a correlation id links each speculative entry to the
// server's eventual confirmation or rejection.
package reconcile

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robaro12345/SafeTalk/internal/domain"
)

// State is the display status of one timeline entry.
type State string

const (
	StateSending   State = "sending"
	StateSent      State = "sent"
	StateDelivered State = "delivered"
	StateRead      State = "read"
	StateFailed    State = "failed"
)

func stateFor(status domain.MessageStatus) State {
	switch status {
	case domain.StatusDelivered:
		return StateDelivered
	case domain.StatusRead:
		return StateRead
	default:
		return StateSent
	}
}

// Entry is one visible message. Pending entries have a correlation id and no
// server record yet; confirmed and incoming entries carry the server record.
type Entry struct {
	CorrelationID string
	MessageID     string
	// Content is the plaintext the user typed, kept locally so their own
	// message stays readable and retryable regardless of payload encryption.
	Content       string
	Record        *domain.View
	State         State
	FailureReason string
	CreatedAt     time.Time
}

// Timeline is the ordered message list for one open conversation. Safe for
// concurrent use by the network read loop and the UI.
type Timeline struct {
	mu      sync.Mutex
	entries []*Entry
	byCorr  map[string]*Entry
	byID    map[string]*Entry
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{
		byCorr: make(map[string]*Entry),
		byID:   make(map[string]*Entry),
	}
}

// CreatePending appends a speculative entry for a just-submitted message and
// returns it with a fresh correlation id. The entry displays as sending
// until the server confirms or rejects it.
func (t *Timeline) CreatePending(content string) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := &Entry{
		CorrelationID: uuid.NewString(),
		Content:       content,
		State:         StateSending,
		CreatedAt:     time.Now(),
	}
	t.entries = append(t.entries, entry)
	t.byCorr[entry.CorrelationID] = entry
	return entry
}

// OnConfirmed resolves a pending entry with the server's durable record,
// replacing it in place so confirmation order can never reorder the list.
// A failed entry is terminal: a late confirmation records the durable id but
// the entry keeps displaying as failed until the user explicitly retries.
// Reports whether the entry's display state changed.
func (t *Timeline) OnConfirmed(correlationID string, record domain.View) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.byCorr[correlationID]
	if !ok {
		return false
	}
	if record.ID != "" {
		entry.MessageID = record.ID
		t.byID[record.ID] = entry
	}
	if entry.State == StateFailed {
		return false
	}
	rec := record
	entry.Record = &rec
	entry.State = stateFor(record.Status)
	return true
}

// OnFailed marks the matching entry failed. The entry is not removed; the
// user must be able to see and retry the failed send.
func (t *Timeline) OnFailed(correlationID, reason string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.byCorr[correlationID]
	if !ok {
		return false
	}
	entry.State = StateFailed
	entry.FailureReason = reason
	return true
}

// OnIncoming appends a message pushed by the server. Messages carrying our
// own correlation id resolve the pending entry instead of appending.
// Duplicates are dropped by server-assigned id, which also makes redelivery
// idempotent. Reports whether the list changed.
func (t *Timeline) OnIncoming(record domain.View) bool {
	if record.TempID != "" {
		if t.has(record.TempID) {
			return t.OnConfirmed(record.TempID, record)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if record.ID != "" {
		if _, ok := t.byID[record.ID]; ok {
			return false
		}
	}
	rec := record
	entry := &Entry{
		MessageID: record.ID,
		Record:    &rec,
		State:     stateFor(record.Status),
		CreatedAt: record.Timestamp,
	}
	t.entries = append(t.entries, entry)
	if record.ID != "" {
		t.byID[record.ID] = entry
	}
	return true
}

// OnRead marks the given messages read, as a sender does when receipts
// arrive. Unknown ids are ignored.
func (t *Timeline) OnRead(messageIDs ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range messageIDs {
		if entry, ok := t.byID[id]; ok && entry.State != StateFailed {
			entry.State = StateRead
			if entry.Record != nil {
				entry.Record.Status = domain.StatusRead
			}
		}
	}
}

// Retry re-submits a failed entry: the failed entry is removed and a new
// pending entry with a fresh correlation id is appended. Returns nil if the
// entry is unknown or not failed.
func (t *Timeline) Retry(correlationID string) *Entry {
	t.mu.Lock()
	entry, ok := t.byCorr[correlationID]
	if !ok || entry.State != StateFailed {
		t.mu.Unlock()
		return nil
	}
	t.removeLocked(entry)
	content := entry.Content
	t.mu.Unlock()

	return t.CreatePending(content)
}

func (t *Timeline) removeLocked(entry *Entry) {
	for i, e := range t.entries {
		if e == entry {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			break
		}
	}
	delete(t.byCorr, entry.CorrelationID)
	if entry.MessageID != "" {
		delete(t.byID, entry.MessageID)
	}
}

func (t *Timeline) has(correlationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byCorr[correlationID]
	return ok
}

// Entries returns a snapshot of the visible list in display order.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	return out
}

// Len returns the number of visible entries.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
