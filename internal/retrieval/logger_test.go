package retrieval

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryLogger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewQueryLogger(&buf)

	const writers, perWriter = 20, 50
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				logger.Log(QueryLogEntry{Query: "horario de biblioteca", Variants: 3, Duration: 2 * time.Millisecond})
			}
		}()
	}
	wg.Wait()

	decoder := json.NewDecoder(&buf)
	count := 0
	for decoder.More() {
		var entry QueryLogEntry
		require.NoError(t, decoder.Decode(&entry), "entry %d", count)
		assert.Equal(t, int64(2), entry.LatencyMs)
		count++
	}
	assert.Equal(t, writers*perWriter, count)
}

func TestNewFileQueryLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "query.log")
	logger, err := NewFileQueryLogger(path)
	require.NoError(t, err)

	logger.Log(QueryLogEntry{Query: "becas", NumResults: 4})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry QueryLogEntry
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "becas", entry.Query)
	assert.False(t, entry.Timestamp.IsZero())
}
