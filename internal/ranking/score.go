// Package ranking scores trees against a search context and orders them.
//
// The relevance score is a weighted sum of five sub-scores:
//
//	score = location*0.40 + feature*0.25 + quality*0.20 + difficulty*0.10 + content*0.05
//
// The feature and content sub-scores are not capped individually and can
// exceed 1.0; only the weighted total is clamped to 1.0.
package ranking

import (
	"math"
	"strings"
	"time"

	"backend-scampr/internal/shared/geo"
)

// Weights defines the contribution of each sub-score to the total.
type Weights struct {
	Location   float64
	Feature    float64
	Quality    float64
	Difficulty float64
	Content    float64
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{
		Location:   0.40,
		Feature:    0.25,
		Quality:    0.20,
		Difficulty: 0.10,
		Content:    0.05,
	}
}

// Candidate is the projection of a tree the engine needs.
type Candidate struct {
	Name          string
	Description   string
	TreeType      string
	Features      []string
	Difficulty    float64
	AverageRating float64
	ClimbCount    int
	CreatedAt     time.Time
	Lat           float64
	Lng           float64
	// Distance in km from the requester, nil when unknown.
	Distance *float64
	Score    float64
}

// Query is the requester's search context. Nil pointers mean "not given".
type Query struct {
	Text                string
	Lat                 *float64
	Lng                 *float64
	PreferredDifficulty *float64
	PreferredFeatures   []string
}

// HasOrigin reports whether the requester supplied both coordinates.
func (q Query) HasOrigin() bool {
	return q.Lat != nil && q.Lng != nil
}

func (q Query) text() string {
	return strings.ToLower(strings.TrimSpace(q.Text))
}

// Breakdown holds the unweighted sub-scores of one candidate.
type Breakdown struct {
	Location   float64
	Feature    float64
	Quality    float64
	Difficulty float64
	Content    float64
}

// Total combines the sub-scores with w and clamps the result to 1.0.
func (b Breakdown) Total(w Weights) float64 {
	total := b.Location*w.Location +
		b.Feature*w.Feature +
		b.Quality*w.Quality +
		b.Difficulty*w.Difficulty +
		b.Content*w.Content
	return math.Min(1.0, total)
}

// Engine computes relevance scores. The zero value is not usable; use NewEngine.
type Engine struct {
	weights Weights
}

// NewEngine returns an engine scoring with w, usually DefaultWeights().
func NewEngine(w Weights) *Engine {
	return &Engine{weights: w}
}

// Score returns the relevance of c for q in [0, 1].
func (e *Engine) Score(c Candidate, q Query) float64 {
	return e.Explain(c, q).Total(e.weights)
}

// Explain returns the individual sub-scores behind Score.
func (e *Engine) Explain(c Candidate, q Query) Breakdown {
	text := q.text()
	tokens := strings.Fields(text)

	b := Breakdown{
		Feature:    featureScore(c.Features, q.PreferredFeatures, tokens),
		Quality:    qualityScore(c.AverageRating, c.ClimbCount),
		Difficulty: difficultyScore(c.Difficulty, q.PreferredDifficulty),
	}
	if q.HasOrigin() {
		d := c.Distance
		if d == nil {
			computed := geo.HaversineKm(*q.Lat, *q.Lng, c.Lat, c.Lng)
			d = &computed
		}
		b.Location = locationScore(*d)
	}
	if text != "" {
		b.Content = contentScore(c, text, tokens)
	}
	return b
}

func locationScore(d float64) float64 {
	switch {
	case d == 0:
		return 1.0
	case d <= 1:
		return 0.9
	case d <= 5:
		return 0.7
	case d <= 10:
		return 0.5
	case d <= 25:
		return 0.3
	default:
		return math.Max(0.1, 10/d)
	}
}

func featureScore(features, preferred, tokens []string) float64 {
	lowered := make([]string, 0, len(features))
	for _, f := range features {
		lowered = append(lowered, strings.ToLower(f))
	}

	var score float64
	prefs := distinctLower(preferred)
	switch {
	case len(prefs) > 0 && len(lowered) > 0:
		have := make(map[string]struct{}, len(lowered))
		for _, f := range lowered {
			have[f] = struct{}{}
		}
		matched := 0
		for _, p := range prefs {
			if _, ok := have[p]; ok {
				matched++
			}
		}
		score = float64(matched) / float64(len(prefs))
	case len(lowered) > 0:
		score = 0.3
	}

	if len(tokens) > 0 {
		matches := 0
		for _, f := range lowered {
			for _, tok := range tokens {
				if strings.Contains(f, tok) {
					matches++
					break
				}
			}
		}
		score += math.Min(0.5, float64(matches)*0.2)
	}
	return score
}

func qualityScore(avgRating float64, climbCount int) float64 {
	return 0.7*(avgRating/5.0) + 0.3*math.Min(1.0, float64(climbCount)/20.0)
}

func difficultyScore(difficulty float64, preferred *float64) float64 {
	if preferred == nil {
		return 0.5
	}
	gap := math.Abs(difficulty - *preferred)
	switch {
	case gap <= 0.5:
		return 1.0
	case gap <= 1.0:
		return 0.8
	case gap <= 1.5:
		return 0.6
	default:
		return 0.3
	}
}

func contentScore(c Candidate, text string, tokens []string) float64 {
	var score float64

	treeType := strings.ToLower(c.TreeType)
	if treeType != "" && (strings.Contains(treeType, text) || strings.Contains(text, treeType)) {
		score += 0.4
	}

	desc := strings.ToLower(c.Description)
	matches := 0
	for _, tok := range tokens {
		if strings.Contains(desc, tok) {
			matches++
		}
	}
	score += math.Min(0.4, float64(matches)*0.1)

	if strings.Contains(strings.ToLower(c.Name), text) {
		score += 0.2
	}
	return score
}

func distinctLower(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
