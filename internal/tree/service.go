package tree

import (
	"context"
	"errors"

	"backend-scampr/internal/aggregate"
	"backend-scampr/internal/db"
	"backend-scampr/internal/ranking"
	"backend-scampr/internal/shared/apperr"
	"backend-scampr/internal/shared/validate"
	"backend-scampr/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const treeColumns = `id, name, description, latitude, longitude, address, user_id, user_name,
		       image_urls, difficulty, tree_type, height, features, created_at, climb_count, average_rating`

// Publisher receives tree activity events.
type Publisher interface {
	Publish(ctx context.Context, ev stream.Event)
}

type Service struct {
	db     db.TxBeginner
	engine *ranking.Engine
	events Publisher
	log    *zap.Logger
}

func NewService(conn db.TxBeginner, events Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     conn,
		engine: ranking.NewEngine(ranking.DefaultWeights()),
		events: events,
		log:    logger,
	}
}

func (s *Service) CreateTree(ctx context.Context, userID string, input CreateInput) (Tree, error) {
	if err := validate.Struct(input); err != nil {
		return Tree{}, err
	}

	t := Tree{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		Location:    input.Location,
		Address:     input.Address,
		UserID:      userID,
		ImageURLs:   nonNil(input.ImageURLs),
		Difficulty:  input.Difficulty,
		TreeType:    input.TreeType,
		Height:      input.Height,
		Features:    nonNil(input.Features),
	}

	err := db.WithTx(ctx, s.db, func(q db.Querier) error {
		err := q.QueryRow(ctx, `SELECT display_name FROM users WHERE id=$1`, userID).Scan(&t.UserName)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("user %s", userID)
		}
		if err != nil {
			return err
		}

		row := q.QueryRow(ctx, `
			INSERT INTO trees (id, name, description, latitude, longitude, address, user_id, user_name,
			                   image_urls, difficulty, tree_type, height, features)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			RETURNING created_at
		`, t.ID, t.Name, t.Description, t.Location.Latitude, t.Location.Longitude, t.Address, t.UserID, t.UserName,
			t.ImageURLs, t.Difficulty, t.TreeType, t.Height, t.Features)
		if err := row.Scan(&t.CreatedAt); err != nil {
			return err
		}
		return aggregate.AddAddedTree(ctx, q, userID, t.ID)
	})
	if err != nil {
		return Tree{}, err
	}
	return t, nil
}

func (s *Service) GetTree(ctx context.Context, id string) (Tree, error) {
	row := s.db.QueryRow(ctx, `SELECT `+treeColumns+` FROM trees WHERE id=$1`, id)
	t, err := scanTree(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tree{}, apperr.NotFound("tree %s", id)
	}
	if err != nil {
		return Tree{}, err
	}
	return t, nil
}

// GetTreeDetail returns the tree together with its reviews.
func (s *Service) GetTreeDetail(ctx context.Context, id string) (Detail, error) {
	t, err := s.GetTree(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, user_name, rating, comment, created_at
		FROM reviews WHERE tree_id=$1
		ORDER BY created_at
	`, id)
	if err != nil {
		return Detail{}, err
	}
	defer rows.Close()

	reviews := []ReviewSummary{}
	for rows.Next() {
		var r ReviewSummary
		if err := rows.Scan(&r.ID, &r.UserID, &r.UserName, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return Detail{}, err
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return Detail{}, err
	}
	return Detail{Tree: t, Reviews: reviews}, nil
}

// UpdateTree applies a partial update. Only the tree's creator may update it.
func (s *Service) UpdateTree(ctx context.Context, requesterID, id string, patch UpdateInput) (Tree, error) {
	if err := validate.Struct(patch); err != nil {
		return Tree{}, err
	}

	t, err := s.GetTree(ctx, id)
	if err != nil {
		return Tree{}, err
	}
	if t.UserID != requesterID {
		return Tree{}, apperr.Forbidden("not authorized to update this tree")
	}

	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Difficulty != nil {
		t.Difficulty = *patch.Difficulty
	}
	if patch.TreeType != nil {
		t.TreeType = *patch.TreeType
	}
	if patch.Height != nil {
		t.Height = *patch.Height
	}
	if patch.Features != nil {
		t.Features = nonNil(*patch.Features)
	}

	_, err = s.db.Exec(ctx, `
		UPDATE trees
		SET name=$2, description=$3, difficulty=$4, tree_type=$5, height=$6, features=$7
		WHERE id=$1
	`, t.ID, t.Name, t.Description, t.Difficulty, t.TreeType, t.Height, t.Features)
	if err != nil {
		return Tree{}, err
	}
	return t, nil
}

// DeleteTree removes the tree and its reviews. Only the creator may delete it.
func (s *Service) DeleteTree(ctx context.Context, requesterID, id string) error {
	err := db.WithTx(ctx, s.db, func(q db.Querier) error {
		ownerID, err := aggregate.LockTree(ctx, q, id)
		if err != nil {
			return err
		}
		if ownerID != requesterID {
			return apperr.Forbidden("not authorized to delete this tree")
		}
		if err := aggregate.DeleteTree(ctx, q, id); err != nil {
			return err
		}
		return aggregate.RemoveAddedTree(ctx, q, ownerID, id)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, stream.Event{Type: stream.EventTreeDeleted, TreeID: id})
	return nil
}

func (s *Service) publish(ctx context.Context, ev stream.Event) {
	if s.events == nil {
		return
	}
	s.log.Debug("publishing tree event", zap.String("type", ev.Type), zap.String("tree_id", ev.TreeID))
	s.events.Publish(ctx, ev)
}

func (s *Service) queryTrees(ctx context.Context, sql string, args ...any) ([]Tree, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trees []Tree
	for rows.Next() {
		t, err := scanTree(rows)
		if err != nil {
			return nil, err
		}
		trees = append(trees, t)
	}
	return trees, rows.Err()
}

func scanTree(row pgx.Row) (Tree, error) {
	var t Tree
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Location.Latitude, &t.Location.Longitude, &t.Address,
		&t.UserID, &t.UserName, &t.ImageURLs, &t.Difficulty, &t.TreeType, &t.Height, &t.Features,
		&t.CreatedAt, &t.ClimbCount, &t.AverageRating)
	t.ImageURLs = nonNil(t.ImageURLs)
	t.Features = nonNil(t.Features)
	return t, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
