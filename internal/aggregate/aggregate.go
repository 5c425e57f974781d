// Package aggregate keeps the denormalised counters on trees and users in
// step with the review and tree rows they summarise. Every function takes a
// db.Querier so callers run them inside the same transaction as the mutation
// that triggered them.
package aggregate

import (
	"context"
	"errors"
	"math"

	"backend-scampr/internal/db"
	"backend-scampr/internal/shared/apperr"

	"github.com/jackc/pgx/v5"
)

// TreeStats are the aggregates stored on a tree row.
type TreeStats struct {
	AverageRating float64 `json:"average_rating"`
	ClimbCount    int     `json:"climb_count"`
}

// Average is the mean of ratings rounded to two decimals, 0 for no ratings.
func Average(ratings []float64) float64 {
	if len(ratings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range ratings {
		sum += r
	}
	return math.Round(sum/float64(len(ratings))*100) / 100
}

// LockTree takes a row lock on the tree and returns its creator.
// Concurrent review writes on the same tree serialise behind this lock.
func LockTree(ctx context.Context, q db.Querier, treeID string) (string, error) {
	var ownerID string
	err := q.QueryRow(ctx, `SELECT user_id FROM trees WHERE id=$1 FOR UPDATE`, treeID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound("tree %s", treeID)
	}
	if err != nil {
		return "", err
	}
	return ownerID, nil
}

// RecomputeTree rebuilds average_rating and climb_count from the tree's reviews.
func RecomputeTree(ctx context.Context, q db.Querier, treeID string) (TreeStats, error) {
	rows, err := q.Query(ctx, `SELECT rating FROM reviews WHERE tree_id=$1`, treeID)
	if err != nil {
		return TreeStats{}, err
	}
	var ratings []float64
	for rows.Next() {
		var r float64
		if err := rows.Scan(&r); err != nil {
			rows.Close()
			return TreeStats{}, err
		}
		ratings = append(ratings, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return TreeStats{}, err
	}

	stats := TreeStats{AverageRating: Average(ratings), ClimbCount: len(ratings)}
	_, err = q.Exec(ctx, `
		UPDATE trees SET average_rating=$2, climb_count=$3
		WHERE id=$1
	`, treeID, stats.AverageRating, stats.ClimbCount)
	if err != nil {
		return TreeStats{}, err
	}
	return stats, nil
}

// AddClimbedTree records treeID in the user's climbed_trees on their first review.
func AddClimbedTree(ctx context.Context, q db.Querier, userID, treeID string) error {
	_, err := q.Exec(ctx, `
		UPDATE users
		SET climbed_trees = array_append(climbed_trees, $2), total_climbs = total_climbs + 1
		WHERE id=$1 AND NOT ($2 = ANY(climbed_trees))
	`, userID, treeID)
	return err
}

// RemoveClimbedTreeIfUnreviewed drops treeID from climbed_trees once the user
// has no review left on it.
func RemoveClimbedTreeIfUnreviewed(ctx context.Context, q db.Querier, userID, treeID string) error {
	_, err := q.Exec(ctx, `
		UPDATE users
		SET climbed_trees = array_remove(climbed_trees, $2), total_climbs = GREATEST(total_climbs - 1, 0)
		WHERE id=$1 AND $2 = ANY(climbed_trees)
		  AND NOT EXISTS (SELECT 1 FROM reviews WHERE user_id=$1 AND tree_id=$2)
	`, userID, treeID)
	return err
}

// ScrubClimbedTree removes a deleted tree from every user's climbed_trees.
func ScrubClimbedTree(ctx context.Context, q db.Querier, treeID string) error {
	_, err := q.Exec(ctx, `
		UPDATE users
		SET climbed_trees = array_remove(climbed_trees, $1), total_climbs = GREATEST(total_climbs - 1, 0)
		WHERE $1 = ANY(climbed_trees)
	`, treeID)
	return err
}

// AddAddedTree records treeID in its creator's added_trees.
func AddAddedTree(ctx context.Context, q db.Querier, userID, treeID string) error {
	_, err := q.Exec(ctx, `
		UPDATE users SET added_trees = array_append(added_trees, $2)
		WHERE id=$1 AND NOT ($2 = ANY(added_trees))
	`, userID, treeID)
	return err
}

// RemoveAddedTree drops treeID from the user's added_trees.
func RemoveAddedTree(ctx context.Context, q db.Querier, userID, treeID string) error {
	_, err := q.Exec(ctx, `
		UPDATE users SET added_trees = array_remove(added_trees, $2)
		WHERE id=$1
	`, userID, treeID)
	return err
}

// DeleteTree removes a tree together with its reviews and every reference
// users hold to it through climbed_trees. The creator's added_trees is left
// to the caller, which knows the creator.
func DeleteTree(ctx context.Context, q db.Querier, treeID string) error {
	if _, err := q.Exec(ctx, `DELETE FROM reviews WHERE tree_id=$1`, treeID); err != nil {
		return err
	}
	if err := ScrubClimbedTree(ctx, q, treeID); err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `DELETE FROM trees WHERE id=$1`, treeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("tree %s", treeID)
	}
	return nil
}
