package gateway

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/hpungsan/objective/internal/errors"
)

// Ollama calls a local model server's generate endpoint without streaming.
type Ollama struct {
	client *api.Client
	model  string
}

// NewOllama creates a local provider for model at baseURL.
func NewOllama(baseURL, model string, httpClient *http.Client) (*Ollama, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.NewConfig("invalid ollama url: " + baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Ollama{client: api.NewClient(parsed, httpClient), model: model}, nil
}

func (p *Ollama) Name() string { return "ollama" }

func (p *Ollama) Complete(ctx context.Context, prompt string) (Completion, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: &stream,
	}

	var (
		text     strings.Builder
		final    api.GenerateResponse
		received bool
	)
	err := p.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		received = true
		text.WriteString(resp.Response)
		if resp.Done {
			final = resp
		}
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if stderrors.As(err, &statusErr) {
			return Completion{}, errors.NewProviderStatus(p.Name(), statusErr.StatusCode, statusErr.ErrorMessage)
		}
		return Completion{}, err
	}
	if !received || strings.TrimSpace(text.String()) == "" {
		return Completion{}, errors.NewProtocol(p.Name(), "empty response")
	}

	c := Completion{Text: text.String(), Model: p.model}
	if final.Done {
		c.InputTokens = int64Ptr(int64(final.PromptEvalCount))
		c.OutputTokens = int64Ptr(int64(final.EvalCount))
	}
	return c, nil
}
