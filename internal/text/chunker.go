package text

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultSeparators are tried in order, from paragraph breaks down to single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultMinLength    = 50
)

// Page is one page of already-extracted document text.
type Page struct {
	Content string `json:"content"`
	Page    int    `json:"page"`
}

// PageChunk is a chunk that survived the minimum length floor, tagged with its
// source page and its position in the document.
type PageChunk struct {
	Content string
	Page    int
	Index   int
}

// Splitter cuts text into pieces of at most Size characters, sharing up to
// Overlap characters between neighbours. Lengths are counted in runes.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string

	rc textsplitter.RecursiveCharacter
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Splitter{
		Size:       size,
		Overlap:    overlap,
		Separators: DefaultSeparators,
		rc: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(DefaultSeparators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
			textsplitter.WithKeepSeparator(true),
		),
	}
}

// Split tries separators from coarsest to finest and packs the pieces into
// chunks. Every chunk is trimmed and none is empty.
func (s *Splitter) Split(text string) ([]string, error) {
	return s.rc.SplitText(text)
}

// ChunkPages splits every page and drops chunks whose trimmed length is below
// minLength. Indexes are assigned after filtering so they stay contiguous.
func (s *Splitter) ChunkPages(pages []Page, minLength int) ([]PageChunk, error) {
	var out []PageChunk
	for _, p := range pages {
		page := p.Page
		if page < 1 {
			page = 1
		}
		parts, err := s.Split(p.Content)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", page, err)
		}
		for _, c := range parts {
			if IsNoise(c, minLength) {
				continue
			}
			out = append(out, PageChunk{Content: c, Page: page, Index: len(out)})
		}
	}
	return out, nil
}

// IsNoise reports whether a chunk is too short to be useful evidence.
func IsNoise(content string, minLength int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(content)) < minLength
}
