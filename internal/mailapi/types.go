// Package mailapi is the HTTP client for the mail backend: reply
// composition, sending, draft saving, and the email record fetch used to
// restore workflow state.
package mailapi

import "time"

// Email is the remote email record.
type Email struct {
	ID        string     `json:"id"`
	From      string     `json:"from"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	RepliedAt *time.Time `json:"repliedAt,omitempty"`

	// A previously composed-but-unsent draft, if the record carries one.
	ComposedBody    string `json:"composedBody,omitempty"`
	ComposedSubject string `json:"composedSubject,omitempty"`
}

// HasStoredDraft reports whether the record carries a composed draft to
// restore into the workflow.
func (e *Email) HasStoredDraft() bool {
	return e.ComposedBody != ""
}

// Replied reports whether a reply was already sent for this email.
func (e *Email) Replied() bool {
	return e.RepliedAt != nil
}

// ComposeResult is the composition service output.
type ComposeResult struct {
	ComposedBody    string `json:"composedBody"`
	ComposedSubject string `json:"composedSubject"`
}

// SendResult is the send service output.
type SendResult struct {
	Success         bool   `json:"success"`
	GoogleMessageID string `json:"googleMessageId"`
}

// DraftResult is the draft-save service output.
type DraftResult struct {
	Success       bool   `json:"success"`
	GoogleDraftID string `json:"googleDraftId"`
}

type composeRequest struct {
	RawText string `json:"rawText"`
}

type replyRequest struct {
	ComposedBody    string `json:"composedBody"`
	ComposedSubject string `json:"composedSubject"`
}

// errorResponse is the error envelope the backend returns on non-2xx
// responses. Both the envelope and the field are optional.
type errorResponse struct {
	Detail struct {
		Error string `json:"error"`
	} `json:"detail"`
}
