package devserver

import (
	"sync"
	"time"
)

// emailRecord mirrors the wire shape of the mail backend's email record.
type emailRecord struct {
	ID        string     `json:"id"`
	From      string     `json:"from"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	RepliedAt *time.Time `json:"repliedAt,omitempty"`

	ComposedBody    string `json:"composedBody,omitempty"`
	ComposedSubject string `json:"composedSubject,omitempty"`
}

// mailbox is an in-memory email store, seeded with demo messages so the
// CLI has something to reply to out of the box.
type mailbox struct {
	mu     sync.Mutex
	emails map[string]*emailRecord
}

func newMailbox() *mailbox {
	return &mailbox{
		emails: map[string]*emailRecord{
			"demo-1": {
				ID:      "demo-1",
				From:    "tanaka@example.com",
				Subject: "明日の打ち合わせの件",
				Body:    "お世話になっております。田中です。\n明日の打ち合わせですが、10時からに変更できますでしょうか。\nご確認よろしくお願いいたします。",
			},
			"demo-2": {
				ID:      "demo-2",
				From:    "suzuki@example.com",
				Subject: "資料のご送付",
				Body:    "先日お話しした資料をお送りします。ご査収ください。",
			},
		},
	}
}

// get returns a copy of the record, or false when the id is unknown.
func (m *mailbox) get(id string) (emailRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.emails[id]
	if !ok {
		return emailRecord{}, false
	}

	return *rec, true
}

// saveDraft stores the composed draft on the record.
func (m *mailbox) saveDraft(id, body, subject string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.emails[id]
	if !ok {
		return false
	}

	rec.ComposedBody = body
	rec.ComposedSubject = subject

	return true
}

// markReplied records the send time on the record.
func (m *mailbox) markReplied(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.emails[id]
	if !ok {
		return false
	}

	now := time.Now().UTC()
	rec.RepliedAt = &now

	return true
}
