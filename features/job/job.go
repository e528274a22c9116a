package job

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/config"
)

var (
	ErrNotFound       = errors.New("failed job not found")
	ErrUnknownTopic   = errors.New("unknown topic")
	ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")
)

// Job is a unit of background work that failed and can be published again.
// Topic is the queue it came from; ReferenceID names the document or check.
type Job struct {
	ID          string          `json:"id"`
	ReferenceID string          `json:"reference_id"`
	Topic       string          `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	Error       string          `json:"error"`
	Retries     int             `json:"retries"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	Topic       string
	ReferenceID string
}

func (f Filter) Validate() error {
	switch f.Topic {
	case "", config.TopicDocumentIngest, config.TopicOriginalityCheck:
		return nil
	}
	return ErrUnknownTopic
}
