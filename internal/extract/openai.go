package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var statusCodeRe = regexp.MustCompile(`status code: (\d{3})`)

// OpenAIClient completes through an OpenAI-compatible chat endpoint.
type OpenAIClient struct {
	llm llms.Model
}

// NewOpenAIClient builds a client for model. baseURL may be empty.
func NewOpenAIClient(apiKey, model, baseURL string) (*OpenAIClient, error) {
	opts := []openai.Option{
		openai.WithModel(model),
	}
	if apiKey != "" {
		opts = append(opts, openai.WithToken(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return &OpenAIClient{llm: llm}, nil
}

// Complete sends the system and user messages and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		llms.TextParts(llms.ChatMessageTypeHuman, req.User),
	}
	options := []llms.CallOption{
		llms.WithTemperature(req.Temperature),
	}
	if req.Model != "" {
		options = append(options, llms.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", openAIError(ctx, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", &ServiceError{Provider: "openai", Message: "empty response"}
	}
	return resp.Choices[0].Content, nil
}

func openAIError(ctx context.Context, err error) *ServiceError {
	se := &ServiceError{Provider: "openai", Err: err}
	if m := statusCodeRe.FindStringSubmatch(err.Error()); len(m) > 1 {
		se.StatusCode, _ = strconv.Atoi(m[1])
		return se
	}
	se.Transient = ctx.Err() == nil
	return se
}
