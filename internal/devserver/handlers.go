package devserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amaki/voicereply/internal/composer"
)

type composeRequest struct {
	RawText string `json:"rawText"`
}

type replyRequest struct {
	ComposedBody    string `json:"composedBody"`
	ComposedSubject string `json:"composedSubject"`
}

// handleFetchEmail returns the stored email record.
func (s *Server) handleFetchEmail(c *gin.Context) {
	rec, ok := s.mailbox.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorDetail("メールが見つかりません"))
		return
	}

	c.JSON(http.StatusOK, rec)
}

// handleComposeReply runs the composer over the dictated text and the
// original email.
func (s *Server) handleComposeReply(c *gin.Context) {
	rec, ok := s.mailbox.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorDetail("メールが見つかりません"))
		return
	}

	var req composeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RawText) == "" {
		c.JSON(http.StatusBadRequest, errorDetail("口述テキストが空です"))
		return
	}

	reply, err := s.composer.ComposeReply(c.Request.Context(), composer.ReplyInput{
		RawText:         req.RawText,
		OriginalFrom:    rec.From,
		OriginalSubject: rec.Subject,
		OriginalBody:    rec.Body,
	})
	if err != nil {
		s.logger.Error("compose failed", "email_id", rec.ID, "error", err)
		c.JSON(http.StatusBadGateway, errorDetail("返信の作成に失敗しました"))

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"composedBody":    reply.Body,
		"composedSubject": reply.Subject,
	})
}

// handleSendReply marks the email replied and returns a fake message id.
func (s *Server) handleSendReply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ComposedBody) == "" {
		c.JSON(http.StatusBadRequest, errorDetail("送信する本文がありません"))
		return
	}

	id := c.Param("id")
	if !s.mailbox.markReplied(id) {
		c.JSON(http.StatusNotFound, errorDetail("メールが見つかりません"))
		return
	}

	s.logger.Info("reply sent", "email_id", id)
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"googleMessageId": fmt.Sprintf("dev-msg-%d", time.Now().UnixNano()),
	})
}

// handleSaveDraft stores the draft on the record and returns a fake
// draft id.
func (s *Server) handleSaveDraft(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ComposedBody) == "" {
		c.JSON(http.StatusBadRequest, errorDetail("保存する本文がありません"))
		return
	}

	id := c.Param("id")
	if !s.mailbox.saveDraft(id, req.ComposedBody, req.ComposedSubject) {
		c.JSON(http.StatusNotFound, errorDetail("メールが見つかりません"))
		return
	}

	s.logger.Info("draft saved", "email_id", id)
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"googleDraftId": fmt.Sprintf("dev-draft-%d", time.Now().UnixNano()),
	})
}

// EchoComposer is the composer used when no Anthropic key is available.
// It returns the dictation as the body with minimal dressing so the
// full workflow stays usable offline.
type EchoComposer struct{}

// ComposeReply implements Composer.
func (EchoComposer) ComposeReply(_ context.Context, input composer.ReplyInput) (*composer.Reply, error) {
	subject := input.OriginalSubject
	if !strings.HasPrefix(subject, "Re: ") {
		subject = "Re: " + subject
	}

	return &composer.Reply{
		Body:    strings.TrimSpace(input.RawText),
		Subject: subject,
	}, nil
}
