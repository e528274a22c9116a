package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/document"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/originality"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/ingest"
	engine "github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/originality"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/text"
)

type DocumentSource interface {
	Get(ctx context.Context, id string) (*document.Document, error)
	GetPages(ctx context.Context, id string) ([]text.Page, error)
}

type CheckSource interface {
	Get(ctx context.Context, id string) (*originality.Check, error)
	GetPages(ctx context.Context, id string) ([]text.Page, error)
}

type Ingester interface {
	Run(ctx context.Context, doc ingest.Document, pages []text.Page) (int, error)
}

type Scorer interface {
	Run(ctx context.Context, checkID string, pages []text.Page, threshold float64) (*engine.Result, error)
}

// FailureRecorder keeps a failed unit so an operator can retry it.
type FailureRecorder interface {
	Record(ctx context.Context, topic, referenceID string, payload []byte, cause error) error
}

const recordTimeout = 10 * time.Second

// recordFailure saves a failed unit on a context detached from the unit
// deadline, which has usually expired by the time the unit gives up.
func recordFailure(ctx context.Context, f FailureRecorder, topic, referenceID string, payload []byte, cause error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := f.Record(wctx, topic, referenceID, payload, cause); err != nil {
		slog.ErrorContext(ctx, "failed to record failed job", "error", err)
	}
}
