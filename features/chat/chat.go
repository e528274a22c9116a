package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/adapter/gemini"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/rag"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/retrieval"
)

var ErrEmptyMessage = errors.New("message is required")

// HistoryTurns is how many previous turns are sent along with a question.
const HistoryTurns = 6

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID             string             `json:"id"`
	ConversationID string             `json:"conversation_id"`
	Role           string             `json:"role"`
	Content        string             `json:"content"`
	Sources        []retrieval.Source `json:"sources,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

type Request struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	CategoryID     string `json:"category_id"`
}

type Reply struct {
	ConversationID string             `json:"conversation_id"`
	Answer         string             `json:"answer"`
	Sources        []retrieval.Source `json:"sources"`
	NoAnswer       bool               `json:"no_answer"`
}

type Repository interface {
	Append(ctx context.Context, m *Message) error
	Recent(ctx context.Context, conversationID string, limit int) ([]Message, error)
	Conversation(ctx context.Context, conversationID string) ([]Message, error)
	DeleteConversation(ctx context.Context, conversationID string) error
}

type Answerer interface {
	Answer(ctx context.Context, req rag.Request) (*rag.Answer, error)
	Stream(ctx context.Context, req rag.Request, emit func(rag.Event) error) (*rag.Answer, error)
}

type Service struct {
	repo     Repository
	answerer Answerer
}

func NewService(repo Repository, a Answerer) *Service {
	return &Service{repo: repo, answerer: a}
}

// Send answers one message and records both turns of the exchange.
func (s *Service) Send(ctx context.Context, req Request) (*Reply, error) {
	ragReq, err := s.begin(ctx, &req)
	if err != nil {
		return nil, err
	}

	ans, err := s.answerer.Answer(ctx, ragReq)
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}

	s.finish(ctx, req.ConversationID, ans)
	return &Reply{ConversationID: req.ConversationID, Answer: ans.Text, Sources: nonNil(ans.Sources), NoAnswer: ans.NoAnswer}, nil
}

// Stream answers one message through emit. The assistant turn is recorded
// only when the whole answer was produced.
func (s *Service) Stream(ctx context.Context, req Request, emit func(rag.Event) error) (*Reply, error) {
	ragReq, err := s.begin(ctx, &req)
	if err != nil {
		return nil, err
	}

	ans, err := s.answerer.Stream(ctx, ragReq, emit)
	if err != nil {
		slog.WarnContext(ctx, "answer stream ended early", "conversation_id", req.ConversationID, "error", err)
		return nil, err
	}

	s.finish(ctx, req.ConversationID, ans)
	return &Reply{ConversationID: req.ConversationID, Answer: ans.Text, Sources: nonNil(ans.Sources), NoAnswer: ans.NoAnswer}, nil
}

func (s *Service) Conversation(ctx context.Context, id string) ([]Message, error) {
	return s.repo.Conversation(ctx, id)
}

func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	return s.repo.DeleteConversation(ctx, id)
}

// begin loads the prior turns and records the user turn.
func (s *Service) begin(ctx context.Context, req *Request) (rag.Request, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return rag.Request{}, ErrEmptyMessage
	}

	var history []gemini.Turn
	if req.ConversationID == "" {
		req.ConversationID = uuid.New().String()
	} else {
		prior, err := s.repo.Recent(ctx, req.ConversationID, HistoryTurns)
		if err != nil {
			slog.WarnContext(ctx, "failed to load conversation history", "error", err)
		}
		for _, m := range prior {
			role := gemini.RoleUser
			if m.Role == RoleAssistant {
				role = gemini.RoleAssistant
			}
			history = append(history, gemini.Turn{Role: role, Content: m.Content})
		}
	}

	if err := s.repo.Append(ctx, &Message{ConversationID: req.ConversationID, Role: RoleUser, Content: req.Message}); err != nil {
		return rag.Request{}, fmt.Errorf("save user turn: %w", err)
	}
	return rag.Request{Question: req.Message, CategoryID: req.CategoryID, History: history}, nil
}

func (s *Service) finish(ctx context.Context, conversationID string, ans *rag.Answer) {
	m := &Message{ConversationID: conversationID, Role: RoleAssistant, Content: ans.Text, Sources: nonNil(ans.Sources)}
	if err := s.repo.Append(ctx, m); err != nil {
		slog.ErrorContext(ctx, "failed to save assistant turn", "error", err, "conversation_id", conversationID)
	}
}

func nonNil(s []retrieval.Source) []retrieval.Source {
	if s == nil {
		return []retrieval.Source{}
	}
	return s
}
