// Package gateway is the single entry point for model calls. It picks the
// provider from settings, bounds each call in time and rate, and records
// every completed call in the call log.
package gateway

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/config"
	"github.com/hpungsan/objective/internal/errors"
	"github.com/hpungsan/objective/internal/notify"
	"github.com/hpungsan/objective/internal/settings"
)

// MissingKeyAlert is shown to the user when the cloud provider has no key.
const MissingKeyAlert = "Objective: you need to set your Anthropic API key in extension settings, or configure a local model instead"

// SettingsSource supplies the current provider selection.
type SettingsSource interface {
	Get() settings.Settings
}

// Credentials supplies the cloud API key. An empty key means none is set.
type Credentials interface {
	AnthropicKey() (string, error)
}

// Recorder appends call logs.
type Recorder interface {
	Append(ctx context.Context, l activity.AICallLog) error
}

// Options configures a Gateway.
type Options struct {
	Config      *config.Config
	Settings    SettingsSource
	Credentials Credentials
	Logs        Recorder
	Notifier    notify.Notifier

	// HTTPClient is used for the local provider
	HTTPClient *http.Client

	// AnthropicOptions are appended to the cloud client's options
	AnthropicOptions []option.RequestOption
}

// Gateway routes prompts to the configured provider.
type Gateway struct {
	cfg      *config.Config
	settings SettingsSource
	creds    Credentials
	logs     Recorder
	notifier notify.Notifier
	limiter  *rate.Limiter

	httpClient       *http.Client
	anthropicOptions []option.RequestOption

	now func() time.Time
}

// New creates a Gateway. A positive Config.CallsPerMinute enables rate limiting.
func New(opts Options) *Gateway {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	g := &Gateway{
		cfg:              cfg,
		settings:         opts.Settings,
		creds:            opts.Credentials,
		logs:             opts.Logs,
		notifier:         notifier,
		httpClient:       opts.HTTPClient,
		anthropicOptions: opts.AnthropicOptions,
		now:              time.Now,
	}
	if cfg.CallsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(float64(cfg.CallsPerMinute)/60), cfg.CallsPerMinute)
	}
	return g
}

// Call sends prompt to the selected provider and returns the response text.
// The completed call is appended to the call log under callType.
func (g *Gateway) Call(ctx context.Context, prompt, callType string) (string, error) {
	details := map[string]any{"call_type": callType}

	p, err := g.provider()
	if err != nil {
		return "", errors.Wrap(err, "model call", details)
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", errors.Wrap(errors.NewTimeout(p.Name(), err), "model call", details)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout())
	defer cancel()

	start := g.now()
	c, err := p.Complete(callCtx, prompt)
	elapsed := g.now().Sub(start)
	if err != nil {
		err = classify(callCtx, p.Name(), err)
		log.Warn().Err(err).Str("provider", p.Name()).Str("call_type", callType).Msg("model call failed")
		return "", errors.Wrap(err, "model call", details)
	}

	entry := activity.AICallLog{
		Timestamp:       activity.FormatTime(g.now()),
		Model:           c.Model,
		Type:            callType,
		Prompt:          prompt,
		Response:        c.Text,
		InputTokens:     c.InputTokens,
		OutputTokens:    c.OutputTokens,
		DurationSeconds: elapsed.Seconds(),
	}
	if g.logs != nil {
		if err := g.logs.Append(ctx, entry); err != nil {
			return "", errors.Wrap(err, "record model call", details)
		}
	}

	log.Info().
		Str("provider", p.Name()).
		Str("model", c.Model).
		Str("call_type", callType).
		Float64("duration_s", entry.DurationSeconds).
		Msg("model call")
	return c.Text, nil
}

// provider builds the provider named by the current settings.
func (g *Gateway) provider() (Provider, error) {
	s := g.settings.Get()

	switch s.Provider {
	case settings.ProviderLocal:
		if s.LocalModel == "" {
			return nil, errors.NewConfig("local model name is not set")
		}
		return NewOllama(g.cfg.OllamaURL, s.LocalModel, g.httpClient)

	case settings.ProviderCloud, "":
		key := ""
		if g.creds != nil {
			k, err := g.creds.AnthropicKey()
			if err != nil {
				return nil, err
			}
			key = k
		}
		if key == "" {
			g.notifier.Alert(MissingKeyAlert)
			return nil, errors.NewConfig("anthropic api key is not set")
		}
		return NewAnthropic(key, g.cfg.AnthropicModel, g.cfg.AnthropicMaxTokens, g.anthropicOptions...), nil

	default:
		return nil, errors.NewConfig("unknown provider: " + s.Provider)
	}
}

// classify maps a provider failure onto the error taxonomy. Errors the
// provider already classified pass through unless the deadline expired.
func classify(ctx context.Context, provider string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewTimeout(provider, err)
	}
	var e *errors.Error
	if errors.As(err, &e) {
		return e
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return errors.NewProtocol(provider, err.Error())
	}
	return errors.NewProvider(provider, err)
}
