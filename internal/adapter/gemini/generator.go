package gemini

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var ErrEmptyResponse = errors.New("model returned no text")

// charsPerToken approximates how much prompt text fits in one unit of NumCtx.
const charsPerToken = 4

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message of a conversation.
type Turn struct {
	Role    Role
	Content string
}

// GenerateOptions tune a single completion. NumCtx bounds the prompt size,
// System becomes the system instruction and History is replayed before the
// prompt.
type GenerateOptions struct {
	Temperature float32
	NumCtx      int
	System      string
	History     []Turn
}

type GeneratorConfig struct {
	APIKey            string
	Model             string
	RequestsPerMinute int
	Options           []option.ClientOption
}

type Generator struct {
	cfg     GeneratorConfig
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	tracer  trace.Tracer

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini-generate",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	burst := max(1, cfg.RequestsPerMinute/10)
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)

	return &Generator{
		cfg:     cfg,
		breaker: breaker,
		limiter: limiter,
		tracer:  otel.Tracer("gemini-generator"),
	}
}

func (g *Generator) getClient() (*genai.Client, error) {
	g.once.Do(func() {
		if g.cfg.APIKey == "" {
			g.initErr = ErrAPIKeyMissing
			return
		}
		opts := append(slices.Clone(g.cfg.Options), option.WithAPIKey(g.cfg.APIKey))
		g.client, g.initErr = genai.NewClient(context.Background(), opts...)
	})
	return g.client, g.initErr
}

// Generate returns the full completion for prompt.
func (g *Generator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	ctx, span := g.tracer.Start(ctx, "gemini.generate")
	defer span.End()

	session, err := g.prepare(ctx, span, opts)
	if err != nil {
		return "", err
	}

	prompt = budget(prompt, opts.NumCtx)
	result, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := session.SendMessage(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
		return responseText(resp), nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		slog.ErrorContext(ctx, "generation failed", "model", g.cfg.Model, "error", err)
		return "", err
	}

	text := result.(string)
	if text == "" {
		return "", ErrEmptyResponse
	}
	span.SetAttributes(attribute.Int("gemini.response_chars", len(text)))
	return text, nil
}

// Stream delivers the completion fragment by fragment. It stops at the first
// error returned by onToken.
func (g *Generator) Stream(ctx context.Context, prompt string, opts GenerateOptions, onToken func(string) error) error {
	ctx, span := g.tracer.Start(ctx, "gemini.stream")
	defer span.End()

	session, err := g.prepare(ctx, span, opts)
	if err != nil {
		return err
	}

	prompt = budget(prompt, opts.NumCtx)
	_, err = g.breaker.Execute(func() (interface{}, error) {
		iter := session.SendMessageStream(ctx, genai.Text(prompt))
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			if text := responseText(resp); text != "" {
				if err := onToken(text); err != nil {
					return nil, err
				}
			}
		}
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		slog.ErrorContext(ctx, "stream failed", "model", g.cfg.Model, "error", err)
	}
	return err
}

func (g *Generator) prepare(ctx context.Context, span trace.Span, opts GenerateOptions) (*genai.ChatSession, error) {
	span.SetAttributes(
		attribute.String("gemini.model", g.cfg.Model),
		attribute.Float64("gemini.temperature", float64(opts.Temperature)),
		attribute.Int("gemini.num_ctx", opts.NumCtx),
		attribute.Int("gemini.history_turns", len(opts.History)),
	)

	client, err := g.getClient()
	if err != nil {
		return nil, err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, err
	}

	model := client.GenerativeModel(g.cfg.Model)
	model.SetTemperature(opts.Temperature)
	if opts.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(opts.System))
	}

	session := model.StartChat()
	for _, t := range opts.History {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}
	return session, nil
}

func (g *Generator) Close() error {
	g.once.Do(func() { g.initErr = ErrClientClosed })
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	return sb.String()
}

// budget trims prompt so it fits in numCtx tokens.
func budget(prompt string, numCtx int) string {
	if numCtx <= 0 {
		return prompt
	}
	limit := numCtx * charsPerToken
	r := []rune(prompt)
	if len(r) <= limit {
		return prompt
	}
	return string(r[:limit])
}
