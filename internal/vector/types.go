package vector

// Kind separates regular content chunks from the per-document summary chunk.
type Kind string

const (
	KindContent Kind = "content"
	KindSummary Kind = "summary"
)

// SummaryChunkIndex is the chunk index reserved for a document's summary.
const SummaryChunkIndex = -1

// Chunk is a span of document text with its embedding, as written to the index.
type Chunk struct {
	DocumentID string
	CategoryID string
	Title      string
	Content    string
	Kind       Kind
	Page       int
	ChunkIndex int
	Vector     []float32
}

// SearchParams narrows a similarity search. Threshold is the minimum score in
// [0,1]; empty CategoryID and DocumentIDs mean no restriction.
type SearchParams struct {
	TopK        int
	Threshold   float64
	Kind        Kind
	CategoryID  string
	DocumentIDs []string
}

// Match is a chunk returned by a search, scored in [0,1] where higher is more
// similar.
type Match struct {
	DocumentID string
	CategoryID string
	Title      string
	Content    string
	Kind       Kind
	Page       int
	ChunkIndex int
	Score      float64
}
