package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/config"
)

func TestEnsureTopics_CreatesEveryTopic(t *testing.T) {
	var mu sync.Mutex
	var created []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/topic/create", r.URL.Path)
		mu.Lock()
		created = append(created, r.URL.Query().Get("topic"))
		mu.Unlock()
	}))
	defer ts.Close()

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	ensureTopics(context.Background(), u.Host, 1, 0)

	assert.Equal(t, config.Topics, created)
}

func TestCreateTopic_RejectsErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "INVALID_TOPIC", http.StatusBadRequest)
	}))
	defer ts.Close()

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	err = createTopic(context.Background(), ts.Client(), u.Host, "document.ingest")
	assert.ErrorContains(t, err, "400")
}

func TestRetry(t *testing.T) {
	t.Run("Stops After Success", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), "step", 5, time.Millisecond, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("not ready")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("Returns Last Error", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), "step", 2, time.Millisecond, func(context.Context) error {
			calls++
			return errors.New("still down")
		})
		assert.EqualError(t, err, "still down")
		assert.Equal(t, 2, calls)
	})

	t.Run("Gives Up When Context Ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := retry(ctx, "step", 5, time.Hour, func(context.Context) error { return errors.New("down") })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
