// Package composer turns raw dictated text into a polished email reply
// using the Anthropic API with structured tool output.
package composer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Client handles Anthropic API requests for reply composition.
type Client struct {
	apiKey string
	model  anthropic.Model
}

// NewClient creates a new composer client.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  anthropic.ModelClaudeSonnet4_5_20250929,
	}
}

// ReplyInput carries the raw dictation plus the email being replied to.
type ReplyInput struct {
	RawText         string
	OriginalFrom    string
	OriginalSubject string
	OriginalBody    string
}

// Reply is the composed output.
type Reply struct {
	Body    string
	Subject string
}

// replyToolInput defines the tool input schema for reply composition.
type replyToolInput struct {
	ComposedBody    string `json:"composedBody"`
	ComposedSubject string `json:"composedSubject"`
}

// getReplyTool returns the tool definition for structured reply output.
func getReplyTool() anthropic.ToolParam {
	return anthropic.ToolParam{
		Name: "save_reply",
		Description: anthropic.String(
			"Save the composed email reply with its body and subject line",
		),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type: "object",
			Properties: map[string]interface{}{
				"composedBody": map[string]interface{}{
					"type":        "string",
					"description": "The complete polished reply body, ready to send",
				},
				"composedSubject": map[string]interface{}{
					"type":        "string",
					"description": "The reply subject line, typically Re: plus the original subject",
				},
			},
			Required: []string{"composedBody", "composedSubject"},
		},
	}
}

// ComposeReply generates a polished reply from the dictated text.
func (c *Client) ComposeReply(ctx context.Context, input ReplyInput) (*Reply, error) {
	if c.apiKey == "" {
		return nil, errors.New("API key required: set ANTHROPIC_API_KEY")
	}

	client := anthropic.NewClient(option.WithAPIKey(c.apiKey))
	toolDef := getReplyTool()

	tool := anthropic.ToolUnionParamOfTool(toolDef.InputSchema, toolDef.Name)
	tool.OfTool.Description = toolDef.Description

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: ReplySystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(replyUserMessage(input))),
		},
		Tools:      []anthropic.ToolUnionParam{tool},
		ToolChoice: anthropic.ToolChoiceParamOfTool("save_reply"),
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to compose reply via Anthropic API: %w", err)
	}

	if len(resp.Content) == 0 {
		return nil, errors.New("empty response from Anthropic API")
	}

	toolInput, err := parseReplyToolUse(resp.Content)
	if err != nil {
		return nil, err
	}

	return &Reply{
		Body:    toolInput.ComposedBody,
		Subject: toolInput.ComposedSubject,
	}, nil
}

// parseReplyToolUse extracts replyToolInput from response content blocks.
func parseReplyToolUse(content []anthropic.ContentBlockUnion) (*replyToolInput, error) {
	for _, block := range content {
		if toolUse, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			var toolInput replyToolInput
			inputBytes, err := json.Marshal(toolUse.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool input: %w", err)
			}
			if err := json.Unmarshal(inputBytes, &toolInput); err != nil {
				return nil, fmt.Errorf("failed to parse tool input: %w", err)
			}

			return &toolInput, nil
		}
	}

	return nil, errors.New("no tool use found in Anthropic API response")
}
