package tree

import (
	"context"
	"math"
	"sort"
	"strings"

	"backend-scampr/internal/ranking"
	"backend-scampr/internal/shared/apperr"
	"backend-scampr/internal/shared/geo"
	"backend-scampr/internal/shared/validate"
)

const (
	DefaultRadiusKm = 50.0
	DefaultLimit    = 20
	MaxLimit        = 100
)

type SearchParams struct {
	Query               string
	Lat                 *float64
	Lng                 *float64
	RadiusKm            float64
	TreeType            string
	DifficultyMin       *float64
	DifficultyMax       *float64
	PreferredDifficulty *float64
	PreferredFeatures   []string
	SortBy              ranking.SortMode
	Limit               int
	Skip                int
}

type ListParams struct {
	Lat      *float64
	Lng      *float64
	RadiusKm *float64
	Limit    int
	Skip     int
}

func checkPage(limit, skip int) error {
	if limit < 1 || limit > MaxLimit {
		return apperr.Validation("limit must be between 1 and %d", MaxLimit)
	}
	if skip < 0 {
		return apperr.Validation("skip must be non-negative")
	}
	return nil
}

// checkOrigin rejects requester coordinates outside WGS84 bounds, NaN included.
func checkOrigin(lat, lng *float64) error {
	if lat != nil {
		if err := validate.Var("lat", *lat, "gte=-90,lte=90"); err != nil {
			return err
		}
	}
	if lng != nil {
		if err := validate.Var("lon", *lng, "gte=-180,lte=180"); err != nil {
			return err
		}
	}
	return nil
}

// Search fetches every tree and runs them through filtering, scoring,
// sorting and pagination.
func (s *Service) Search(ctx context.Context, p SearchParams) ([]Result, error) {
	if err := checkPage(p.Limit, p.Skip); err != nil {
		return nil, err
	}
	if err := checkOrigin(p.Lat, p.Lng); err != nil {
		return nil, err
	}
	if p.RadiusKm <= 0 {
		p.RadiusKm = DefaultRadiusKm
	}

	trees, err := s.queryTrees(ctx, `SELECT `+treeColumns+` FROM trees ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return rank(s.engine, trees, p), nil
}

// List is the plain paginated listing: storage order, optional distance
// annotation, radius filter and distance sort when coordinates are given.
func (s *Service) List(ctx context.Context, p ListParams) ([]Result, error) {
	if err := checkPage(p.Limit, p.Skip); err != nil {
		return nil, err
	}
	if err := checkOrigin(p.Lat, p.Lng); err != nil {
		return nil, err
	}

	trees, err := s.queryTrees(ctx, `
		SELECT `+treeColumns+`
		FROM trees
		ORDER BY created_at, id
		OFFSET $1 LIMIT $2
	`, p.Skip, p.Limit)
	if err != nil {
		return nil, err
	}

	hasOrigin := p.Lat != nil && p.Lng != nil
	type listed struct {
		result Result
		dist   float64
	}
	items := make([]listed, 0, len(trees))
	for _, t := range trees {
		it := listed{result: Result{Tree: t}}
		if hasOrigin {
			it.dist = geo.HaversineKm(*p.Lat, *p.Lng, t.Location.Latitude, t.Location.Longitude)
			if p.RadiusKm != nil && it.dist > *p.RadiusKm {
				continue
			}
			shown := geo.Round2(it.dist)
			it.result.Distance = &shown
		}
		items = append(items, it)
	}
	if hasOrigin {
		sort.SliceStable(items, func(i, j int) bool { return items[i].dist < items[j].dist })
	}

	results := make([]Result, 0, len(items))
	for _, it := range items {
		results = append(results, it.result)
	}
	return results, nil
}

type scored struct {
	tree      Tree
	candidate ranking.Candidate
}

func rank(engine *ranking.Engine, trees []Tree, p SearchParams) []Result {
	q := ranking.Query{
		Text:                p.Query,
		Lat:                 p.Lat,
		Lng:                 p.Lng,
		PreferredDifficulty: p.PreferredDifficulty,
		PreferredFeatures:   p.PreferredFeatures,
	}

	pool := make([]scored, 0, len(trees))
	for _, t := range trees {
		c := candidateOf(t)
		if q.HasOrigin() {
			d := geo.HaversineKm(*p.Lat, *p.Lng, t.Location.Latitude, t.Location.Longitude)
			if d > p.RadiusKm {
				continue
			}
			c.Distance = &d
		}
		if p.TreeType != "" && !strings.EqualFold(t.TreeType, p.TreeType) {
			continue
		}
		if p.DifficultyMin != nil && t.Difficulty < *p.DifficultyMin {
			continue
		}
		if p.DifficultyMax != nil && t.Difficulty > *p.DifficultyMax {
			continue
		}
		c.Score = engine.Score(c, q)
		pool = append(pool, scored{tree: t, candidate: c})
	}

	ranking.SortStable(pool, p.SortBy, func(s scored) ranking.Candidate { return s.candidate })

	results := []Result{}
	if p.Skip >= len(pool) {
		return results
	}
	end := min(p.Skip+p.Limit, len(pool))
	for _, s := range pool[p.Skip:end] {
		score := math.Round(s.candidate.Score*1000) / 1000
		r := Result{Tree: s.tree, RelevanceScore: &score}
		if s.candidate.Distance != nil {
			d := geo.Round2(*s.candidate.Distance)
			r.Distance = &d
		}
		results = append(results, r)
	}
	return results
}

func candidateOf(t Tree) ranking.Candidate {
	return ranking.Candidate{
		Name:          t.Name,
		Description:   t.Description,
		TreeType:      t.TreeType,
		Features:      t.Features,
		Difficulty:    t.Difficulty,
		AverageRating: t.AverageRating,
		ClimbCount:    t.ClimbCount,
		CreatedAt:     t.CreatedAt,
		Lat:           t.Location.Latitude,
		Lng:           t.Location.Longitude,
	}
}
