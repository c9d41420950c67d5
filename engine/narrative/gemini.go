package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/WessleyAI/wessley-diagnostics/engine/report"
	"github.com/WessleyAI/wessley-diagnostics/pkg/resilience"
)

type generateAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates narratives with the Gemini API. Calls are paced by a
// token bucket and guarded by a circuit breaker.
type Gemini struct {
	api     generateAPI
	opts    Options
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *slog.Logger
}

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, apiKey string, opts Options, logger *slog.Logger) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("narrative: gemini client: %w", err)
	}
	return newGemini(cli.Models, opts, resilience.NewBreaker(resilience.DefaultBreakerOpts), logger), nil
}

func newGemini(api generateAPI, opts Options, breaker *resilience.Breaker, logger *slog.Logger) *Gemini {
	def := DefaultOptions()
	if opts.Model == "" {
		opts.Model = def.Model
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = def.SystemPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = def.RequestsPerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = def.Burst
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{
		api:     api,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		breaker: breaker,
		logger:  logger,
	}
}

// Breaker exposes the circuit state for health reporting.
func (g *Gemini) Breaker() *resilience.Breaker { return g.breaker }

func (g *Gemini) Narrate(ctx context.Context, res report.DiagnosticResult) (string, error) {
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("narrative: wait: %w", err)
	}

	text, err := resilience.Do(ctx, g.breaker, func(ctx context.Context) (string, error) {
		resp, err := g.api.GenerateContent(ctx, g.opts.Model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: Prompt(res)}}}},
			&genai.GenerateContentConfig{
				SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: g.opts.SystemPrompt}}},
				Temperature:       genai.Ptr(g.opts.Temperature),
				MaxOutputTokens:   g.opts.MaxTokens,
			},
		)
		if err != nil {
			return "", err
		}
		return firstText(resp)
	})
	if err != nil {
		g.logger.Warn("narrative generation failed", "id", res.ID, "breaker", g.breaker.State().String(), "err", err)
		return "", fmt.Errorf("narrative: generate: %w", err)
	}
	return text, nil
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmpty
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}
