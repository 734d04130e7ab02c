package mailapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Operation names one of the mail API calls for error classification.
type Operation string

const (
	OpCompose Operation = "compose-reply"
	OpSend    Operation = "send-reply"
	OpDraft   Operation = "save-draft"
	OpFetch   Operation = "fetch-email"
)

// fallbackMessage is the fixed Japanese message per operation, used when
// the backend supplies no parseable error detail.
func fallbackMessage(op Operation) string {
	switch op {
	case OpCompose:
		return "返信の作成に失敗しました"
	case OpSend:
		return "送信に失敗しました"
	case OpDraft:
		return "下書きの保存に失敗しました"
	default:
		return "メールの取得に失敗しました"
	}
}

// OperationError is any mail API failure normalized to a user-facing
// message. The workflow never distinguishes transport failure from an
// application-level rejection; both arrive as "the operation failed,
// with message M".
type OperationError struct {
	Op      Operation
	Status  int
	Message string
}

func (e *OperationError) Error() string {
	return e.Message
}

// Client calls the mail backend with bearer-token authentication.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a mail API client. An empty token produces a client
// whose callers are expected to guard calls themselves; the client still
// sends whatever token it was given.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ComposeReply rewrites raw dictated text into a polished reply.
func (c *Client) ComposeReply(ctx context.Context, emailID, rawText string) (*ComposeResult, error) {
	var out ComposeResult
	err := c.post(ctx, OpCompose, emailID, "compose-reply", composeRequest{RawText: rawText}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// SendReply sends the composed reply.
func (c *Client) SendReply(ctx context.Context, emailID, body, subject string) (*SendResult, error) {
	var out SendResult
	err := c.post(ctx, OpSend, emailID, "send-reply", replyRequest{ComposedBody: body, ComposedSubject: subject}, &out)
	if err != nil {
		return nil, err
	}

	if !out.Success {
		return nil, &OperationError{Op: OpSend, Status: http.StatusOK, Message: fallbackMessage(OpSend)}
	}

	return &out, nil
}

// SaveDraft saves the composed reply as a remote draft.
func (c *Client) SaveDraft(ctx context.Context, emailID, body, subject string) (*DraftResult, error) {
	var out DraftResult
	err := c.post(ctx, OpDraft, emailID, "save-draft", replyRequest{ComposedBody: body, ComposedSubject: subject}, &out)
	if err != nil {
		return nil, err
	}

	if !out.Success {
		return nil, &OperationError{Op: OpDraft, Status: http.StatusOK, Message: fallbackMessage(OpDraft)}
	}

	return &out, nil
}

// FetchEmail retrieves the email record, including any stored draft and
// reply timestamp, for workflow restoration.
func (c *Client) FetchEmail(ctx context.Context, emailID string) (*Email, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.emailURL(emailID, ""), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}

	var out Email
	if err := c.do(req, OpFetch, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) post(ctx context.Context, op Operation, emailID, action string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.emailURL(emailID, action), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}

	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op Operation, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &OperationError{Op: op, Message: fallbackMessage(op)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &OperationError{Op: op, Status: resp.StatusCode, Message: fallbackMessage(op)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &OperationError{Op: op, Status: resp.StatusCode, Message: errorMessage(op, raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &OperationError{Op: op, Status: resp.StatusCode, Message: fallbackMessage(op)}
	}

	return nil
}

// errorMessage extracts the server-provided error detail, tolerating a
// body that is not structured data.
func errorMessage(op Operation, raw []byte) string {
	var payload errorResponse
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail.Error != "" {
		return payload.Detail.Error
	}

	return fallbackMessage(op)
}

func (c *Client) emailURL(emailID, action string) string {
	u := c.baseURL + "/emails/" + url.PathEscape(emailID)
	if action != "" {
		u += "/" + action
	}

	return u
}
