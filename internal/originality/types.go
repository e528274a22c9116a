package originality

import "math"

type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very_high"
)

// GlobalLevel bands the plagiarism percentage of a whole check (0-100).
func GlobalLevel(plagiarismPct float64) Level {
	switch {
	case plagiarismPct >= 85:
		return LevelVeryHigh
	case plagiarismPct >= 65:
		return LevelHigh
	case plagiarismPct >= 50:
		return LevelModerate
	default:
		return LevelLow
	}
}

// SourceLevel bands the best neighbour score (0-1) seen for one source.
func SourceLevel(maxScore float64) Level {
	switch {
	case maxScore >= 0.85:
		return LevelVeryHigh
	case maxScore >= 0.65:
		return LevelHigh
	case maxScore >= 0.50:
		return LevelModerate
	default:
		return LevelLow
	}
}

// SourceMatch summarises how much of a submission resembles one indexed document.
type SourceMatch struct {
	DocumentID     string   `json:"document_id"`
	Title          string   `json:"title"`
	CategoryID     string   `json:"category_id"`
	MaxScore       float64  `json:"max_score"`
	AvgScore       float64  `json:"avg_score"`
	ChunkHits      int      `json:"chunk_hits"`
	SimilarityPct  float64  `json:"similarity_pct"`
	PagesHit       []int    `json:"pages_hit"`
	RiskLevel      Level    `json:"risk_level"`
	CommonThemes   []string `json:"common_themes"`
	Technologies   []string `json:"technologies"`
	Methods        []string `json:"methods"`
	Approach       string   `json:"approach"`
	ProblemOverlap string   `json:"problem_overlap"`
	LLMAnalysis    string   `json:"llm_analysis"`
}

type MatchSummary struct {
	TotalDocumentsMatched int           `json:"total_documents_matched"`
	Documents             []SourceMatch `json:"documents"`
}

type Result struct {
	OriginalityScore float64
	Level            Level
	TotalChunks      int
	FlaggedChunks    int
	Summary          MatchSummary
}

// Pair is a probe chunk alongside the indexed text it matched.
type Pair struct {
	ProbeText  string
	SourceText string
	Score      float64
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
