package rag

import (
	"context"
	"log/slog"
	"strings"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/adapter/gemini"
)

type Verdict string

const (
	Sufficient   Verdict = "SUFICIENTE"
	Partial      Verdict = "PARCIAL"
	Insufficient Verdict = "INSUFICIENTE"
)

const (
	reflectionContextRunes = 3000
	reflectionNumCtx       = 1024
)

type Reflector struct {
	gen Generator
}

func NewReflector(gen Generator) *Reflector {
	return &Reflector{gen: gen}
}

// Reflect grades whether evidence can answer question. When the model cannot
// be reached the evidence is trusted and Partial is returned.
func (r *Reflector) Reflect(ctx context.Context, question, evidence string) Verdict {
	raw, err := r.gen.Generate(ctx, reflectionPrompt(truncate(evidence, reflectionContextRunes), question), gemini.GenerateOptions{
		Temperature: 0,
		NumCtx:      reflectionNumCtx,
		System:      reflectionSystem,
	})
	if err != nil {
		slog.WarnContext(ctx, "reflection failed, continuing with answer", "error", err)
		return Partial
	}
	return ParseVerdict(raw)
}

// ParseVerdict maps model output to a verdict. INSUFICIENTE contains
// SUFICIENTE, so it is checked first.
func ParseVerdict(raw string) Verdict {
	up := strings.ToUpper(raw)
	switch {
	case strings.Contains(up, string(Insufficient)):
		return Insufficient
	case strings.Contains(up, string(Partial)):
		return Partial
	case strings.Contains(up, string(Sufficient)):
		return Sufficient
	default:
		return Insufficient
	}
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
