package ranking

import (
	"fmt"
	"sort"
	"strings"

	"backend-scampr/internal/shared/apperr"
)

// SortMode selects the ordering of search results.
type SortMode int

const (
	SortRelevance SortMode = iota
	SortDistance
	SortRating
	SortDifficulty
	SortPopularity
	SortRecency
)

var sortModeNames = map[SortMode]string{
	SortRelevance:  "relevance",
	SortDistance:   "distance",
	SortRating:     "rating",
	SortDifficulty: "difficulty",
	SortPopularity: "popularity",
	SortRecency:    "recency",
}

func (m SortMode) String() string {
	if name, ok := sortModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("SortMode(%d)", int(m))
}

// ParseSortMode resolves a request value. Unknown values are a validation error.
func ParseSortMode(s string) (SortMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range sortModeNames {
		if name == s {
			return mode, nil
		}
	}
	return 0, apperr.Validation("unknown sort_by %q", s)
}

// Less reports whether a orders before b under m.
func (m SortMode) Less(a, b Candidate) bool {
	switch m {
	case SortDistance:
		switch {
		case a.Distance == nil:
			return false
		case b.Distance == nil:
			return true
		default:
			return *a.Distance < *b.Distance
		}
	case SortRating:
		return a.AverageRating > b.AverageRating
	case SortDifficulty:
		return a.Difficulty < b.Difficulty
	case SortPopularity:
		return a.ClimbCount > b.ClimbCount
	case SortRecency:
		return a.CreatedAt.After(b.CreatedAt)
	default:
		return a.Score > b.Score
	}
}

// SortStable orders items by mode, keeping the input order for ties.
func SortStable[T any](items []T, mode SortMode, candidate func(T) Candidate) {
	sort.SliceStable(items, func(i, j int) bool {
		return mode.Less(candidate(items[i]), candidate(items[j]))
	})
}
