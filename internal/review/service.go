package review

import (
	"context"
	"errors"

	"backend-scampr/internal/aggregate"
	"backend-scampr/internal/db"
	"backend-scampr/internal/shared/apperr"
	"backend-scampr/internal/shared/validate"
	"backend-scampr/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const unknownTreeName = "Unknown Tree"

type Publisher interface {
	Publish(ctx context.Context, ev stream.Event)
}

type Service struct {
	db     db.TxBeginner
	events Publisher
	log    *zap.Logger
}

func NewService(conn db.TxBeginner, events Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: conn, events: events, log: logger}
}

// Create adds the user's review of a tree. A user reviews a tree at most once.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (Review, error) {
	if err := validate.Struct(input); err != nil {
		return Review{}, err
	}

	r := Review{
		ID:      uuid.NewString(),
		TreeID:  input.TreeID,
		UserID:  userID,
		Rating:  input.Rating,
		Comment: input.Comment,
	}
	var stats aggregate.TreeStats

	err := db.WithTx(ctx, s.db, func(q db.Querier) error {
		if _, err := aggregate.LockTree(ctx, q, r.TreeID); err != nil {
			return err
		}

		var exists bool
		err := q.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM reviews WHERE user_id=$1 AND tree_id=$2)
		`, userID, r.TreeID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("you have already reviewed this tree")
		}

		err = q.QueryRow(ctx, `SELECT display_name FROM users WHERE id=$1`, userID).Scan(&r.UserName)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("user %s", userID)
		}
		if err != nil {
			return err
		}

		err = q.QueryRow(ctx, `
			INSERT INTO reviews (id, tree_id, user_id, user_name, rating, comment)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING created_at
		`, r.ID, r.TreeID, r.UserID, r.UserName, r.Rating, r.Comment).Scan(&r.CreatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict("you have already reviewed this tree")
			}
			return err
		}

		if stats, err = aggregate.RecomputeTree(ctx, q, r.TreeID); err != nil {
			return err
		}
		return aggregate.AddClimbedTree(ctx, q, userID, r.TreeID)
	})
	if err != nil {
		return Review{}, err
	}

	s.publish(ctx, stream.EventReviewCreated, r, stats)
	return r, nil
}

// Update replaces the rating and comment of a review. Only its author may do so.
func (s *Service) Update(ctx context.Context, userID, reviewID string, input UpdateInput) (Review, error) {
	if err := validate.Struct(input); err != nil {
		return Review{}, err
	}

	var (
		r     Review
		stats aggregate.TreeStats
	)
	err := db.WithTx(ctx, s.db, func(q db.Querier) error {
		var err error
		if r, err = ownedReview(ctx, q, userID, reviewID, "update"); err != nil {
			return err
		}
		if _, err := aggregate.LockTree(ctx, q, r.TreeID); err != nil {
			return err
		}

		r.Rating = input.Rating
		r.Comment = input.Comment
		_, err = q.Exec(ctx, `UPDATE reviews SET rating=$2, comment=$3 WHERE id=$1`, r.ID, r.Rating, r.Comment)
		if err != nil {
			return err
		}

		stats, err = aggregate.RecomputeTree(ctx, q, r.TreeID)
		return err
	})
	if err != nil {
		return Review{}, err
	}

	s.publish(ctx, stream.EventReviewUpdated, r, stats)
	return r, nil
}

// Delete removes a review. Only its author may do so. The tree's aggregates
// are recomputed, or skipped when the tree no longer exists.
func (s *Service) Delete(ctx context.Context, userID, reviewID string) error {
	var (
		r         Review
		stats     aggregate.TreeStats
		treeAlive = true
	)
	err := db.WithTx(ctx, s.db, func(q db.Querier) error {
		var err error
		if r, err = ownedReview(ctx, q, userID, reviewID, "delete"); err != nil {
			return err
		}
		if _, err := aggregate.LockTree(ctx, q, r.TreeID); err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
			treeAlive = false
		}

		if _, err := q.Exec(ctx, `DELETE FROM reviews WHERE id=$1`, r.ID); err != nil {
			return err
		}
		if treeAlive {
			if stats, err = aggregate.RecomputeTree(ctx, q, r.TreeID); err != nil {
				return err
			}
		}
		return aggregate.RemoveClimbedTreeIfUnreviewed(ctx, q, userID, r.TreeID)
	})
	if err != nil {
		return err
	}

	if treeAlive {
		s.publish(ctx, stream.EventReviewDeleted, r, stats)
	}
	return nil
}

// ByTree lists the reviews of a tree, oldest first.
func (s *Service) ByTree(ctx context.Context, treeID string) ([]Review, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, tree_id, user_id, user_name, rating, comment, created_at
		FROM reviews WHERE tree_id=$1
		ORDER BY created_at
	`, treeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []Review{}
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.TreeID, &r.UserID, &r.UserName, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// ByUser lists a user's reviews together with the name of each reviewed tree.
func (s *Service) ByUser(ctx context.Context, userID string) ([]MyReview, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.tree_id, t.name, r.rating, r.comment, r.created_at
		FROM reviews r
		LEFT JOIN trees t ON t.id = r.tree_id
		WHERE r.user_id=$1
		ORDER BY r.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []MyReview{}
	for rows.Next() {
		var (
			r        MyReview
			treeName *string
		)
		if err := rows.Scan(&r.ID, &r.TreeID, &treeName, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.TreeName = unknownTreeName
		if treeName != nil {
			r.TreeName = *treeName
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func ownedReview(ctx context.Context, q db.Querier, userID, reviewID, action string) (Review, error) {
	var r Review
	err := q.QueryRow(ctx, `
		SELECT id, tree_id, user_id, user_name, rating, comment, created_at
		FROM reviews WHERE id=$1
	`, reviewID).Scan(&r.ID, &r.TreeID, &r.UserID, &r.UserName, &r.Rating, &r.Comment, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Review{}, apperr.NotFound("review %s", reviewID)
	}
	if err != nil {
		return Review{}, err
	}
	if r.UserID != userID {
		return Review{}, apperr.Forbidden("not authorized to %s this review", action)
	}
	return r, nil
}

func (s *Service) publish(ctx context.Context, eventType string, r Review, stats aggregate.TreeStats) {
	if s.events == nil {
		return
	}
	s.log.Debug("publishing review event", zap.String("type", eventType), zap.String("tree_id", r.TreeID))
	s.events.Publish(ctx, stream.Event{
		Type:          eventType,
		TreeID:        r.TreeID,
		ReviewID:      r.ID,
		AverageRating: stats.AverageRating,
		ClimbCount:    stats.ClimbCount,
	})
}
