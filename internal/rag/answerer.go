package rag

import (
	"context"
	"log/slog"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/adapter/gemini"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/retrieval"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/settings"
)

type StreamGenerator interface {
	Generator
	Stream(ctx context.Context, prompt string, opts gemini.GenerateOptions, onToken func(string) error) error
}

type ContextAssembler interface {
	Assemble(ctx context.Context, question string, p retrieval.Params) (retrieval.Context, error)
}

type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type Request struct {
	Question   string
	CategoryID string
	History    []gemini.Turn
}

// Answer is a finished reply. NoAnswer marks replies produced without
// evidence.
type Answer struct {
	Text     string
	Sources  []retrieval.Source
	NoAnswer bool
}

type EventType string

const (
	EventSources EventType = "sources"
	EventToken   EventType = "token"
)

type Event struct {
	Type    EventType
	Sources []retrieval.Source
	Token   string
}

type Answerer struct {
	assembler ContextAssembler
	reflector *Reflector
	gen       StreamGenerator
	settings  SettingsProvider
}

func NewAnswerer(a ContextAssembler, r *Reflector, gen StreamGenerator, s SettingsProvider) *Answerer {
	return &Answerer{assembler: a, reflector: r, gen: gen, settings: s}
}

type plan struct {
	evidence retrieval.Context
	opts     gemini.GenerateOptions
	noAnswer bool
}

func (a *Answerer) prepare(ctx context.Context, req Request) (*plan, error) {
	set, err := a.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	evidence, err := a.assembler.Assemble(ctx, req.Question, retrieval.Params{
		TopK:                     set.TopK,
		Threshold:                set.ScoreThreshold,
		CandidateMultiplier:      set.CandidateMultiplier,
		CandidateThresholdFactor: set.CandidateThresholdFactor,
		MaxChunksPerDoc:          set.MaxChunksPerDoc,
		CategoryID:               req.CategoryID,
		ExpandQuery:              set.EnableQueryExpansion,
	})
	if err != nil {
		return nil, err
	}

	p := &plan{
		evidence: evidence,
		opts: gemini.GenerateOptions{
			Temperature: float32(set.Temperature),
			NumCtx:      set.NumCtx,
			System:      SystemPrompt,
			History:     req.History,
		},
	}

	switch {
	case evidence.Empty():
		p.noAnswer = true
	case set.EnableReflection:
		verdict := a.reflector.Reflect(ctx, req.Question, evidence.Text)
		slog.InfoContext(ctx, "context reflection", "verdict", string(verdict))
		p.noAnswer = verdict == Insufficient
	}
	return p, nil
}

// Answer retrieves evidence and generates a complete reply.
func (a *Answerer) Answer(ctx context.Context, req Request) (*Answer, error) {
	p, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if p.noAnswer {
		return &Answer{Text: a.suggest(ctx, req.Question, p.opts), Sources: []retrieval.Source{}, NoAnswer: true}, nil
	}

	text, err := a.gen.Generate(ctx, answerPrompt(p.evidence.Text, req.Question), p.opts)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, Sources: p.evidence.Sources}, nil
}

// Stream emits the source list first and then the reply token by token. The
// returned Answer holds the full text once the stream has finished.
func (a *Answerer) Stream(ctx context.Context, req Request, emit func(Event) error) (*Answer, error) {
	p, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if p.noAnswer {
		if err := emit(Event{Type: EventSources, Sources: []retrieval.Source{}}); err != nil {
			return nil, err
		}
		text := a.suggest(ctx, req.Question, p.opts)
		if err := emit(Event{Type: EventToken, Token: text}); err != nil {
			return nil, err
		}
		return &Answer{Text: text, Sources: []retrieval.Source{}, NoAnswer: true}, nil
	}

	if err := emit(Event{Type: EventSources, Sources: p.evidence.Sources}); err != nil {
		return nil, err
	}

	var full []byte
	err = a.gen.Stream(ctx, answerPrompt(p.evidence.Text, req.Question), p.opts, func(token string) error {
		full = append(full, token...)
		return emit(Event{Type: EventToken, Token: token})
	})
	if err != nil {
		return nil, err
	}
	return &Answer{Text: string(full), Sources: p.evidence.Sources}, nil
}

// suggest produces the no-information reply, falling back to a fixed message.
func (a *Answerer) suggest(ctx context.Context, question string, opts gemini.GenerateOptions) string {
	opts.System = suggestionSystem
	opts.History = nil
	text, err := a.gen.Generate(ctx, suggestionPrompt(question), opts)
	if err != nil || text == "" {
		slog.WarnContext(ctx, "suggestion generation failed, using fixed reply", "error", err)
		return NoAnswerMessage
	}
	return text
}
