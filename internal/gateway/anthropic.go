package gateway

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hpungsan/objective/internal/errors"
)

// Anthropic calls the Messages API with a single user message.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates a cloud provider. The SDK's automatic retries are
// disabled; callers own retry policy.
func NewAnthropic(apiKey, model string, maxTokens int, opts ...option.RequestOption) *Anthropic {
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

func (p *Anthropic) Name() string { return "anthropic" }

func (p *Anthropic) Complete(ctx context.Context, prompt string) (Completion, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if stderrors.As(err, &apiErr) {
			return Completion{}, errors.NewProviderStatus(p.Name(), apiErr.StatusCode, apiErr.Error())
		}
		return Completion{}, err
	}

	var text string
	found := false
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			found = true
			break
		}
	}
	if !found || strings.TrimSpace(text) == "" {
		return Completion{}, errors.NewProtocol(p.Name(), "no text content in response")
	}

	model := string(msg.Model)
	if model == "" {
		model = p.model
	}
	return Completion{
		Text:         text,
		Model:        model,
		InputTokens:  int64Ptr(msg.Usage.InputTokens),
		OutputTokens: int64Ptr(msg.Usage.OutputTokens),
	}, nil
}
