package originality

import "sort"

const maxSamplePairs = 5

// sampler keeps the highest scoring pairs seen, up to capacity.
type sampler struct {
	capacity int
	pairs    []Pair
}

func newSampler(capacity int) *sampler {
	return &sampler{capacity: capacity}
}

// Offer adds p while there is room. Once full, p replaces the lowest scoring
// pair only when it scores strictly higher.
func (s *sampler) Offer(p Pair) {
	if len(s.pairs) < s.capacity {
		s.pairs = append(s.pairs, p)
		return
	}
	low := 0
	for i := range s.pairs {
		if s.pairs[i].Score < s.pairs[low].Score {
			low = i
		}
	}
	if p.Score > s.pairs[low].Score {
		s.pairs[low] = p
	}
}

// Top returns up to n pairs ordered by score, best first.
func (s *sampler) Top(n int) []Pair {
	out := make([]Pair, len(s.pairs))
	copy(out, s.pairs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
