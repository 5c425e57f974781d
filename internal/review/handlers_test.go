package review

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func newTestApp(svc *Service, userID string) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/reviews"), svc, func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	})
	return app
}

func TestReviewHandlersCreateConflict(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectBegin()
	expectLock(mock, "tree-1")
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("user-b", "tree-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	app := newTestApp(NewService(mock, nil, nil), "user-b")
	body, _ := json.Marshal(map[string]any{"tree_id": "tree-1", "rating": 4, "comment": "again"})
	req := httptest.NewRequest(http.MethodPost, "/reviews", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%v)", resp.StatusCode, err)
	}
}

func TestReviewHandlersCreateInvalidRating(t *testing.T) {
	app := newTestApp(NewService(newMockPool(t), nil, nil), "user-b")
	body, _ := json.Marshal(map[string]any{"tree_id": "tree-1", "rating": 7})
	req := httptest.NewRequest(http.MethodPost, "/reviews", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestReviewHandlersMyReviewsNotShadowed(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery(`LEFT JOIN trees`).
		WithArgs("user-b").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tree_id", "name", "rating", "comment", "created_at"}).
			AddRow("r1", "gone", nil, 3.0, "hm", time.Now()))

	app := newTestApp(NewService(mock, nil, nil), "user-b")
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/reviews/user/my-reviews", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("my reviews status: %d (%v)", resp.StatusCode, err)
	}
	var out []MyReview
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || len(out) != 1 || out[0].TreeName != "Unknown Tree" {
		t.Fatalf("unexpected body: %+v %v", out, err)
	}
}

func TestReviewHandlersDeleteForbidden(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectBegin()
	expectOwnedReview(mock, "review-1", "tree-1", "user-b", 4)
	mock.ExpectRollback()

	app := newTestApp(NewService(mock, nil, nil), "user-c")
	resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/reviews/review-1", nil))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestReviewHandlersByTree(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery(`FROM reviews WHERE tree_id=\$1`).
		WithArgs("tree-1").
		WillReturnRows(pgxmock.NewRows(reviewColumns))

	app := newTestApp(NewService(mock, nil, nil), "")
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/reviews/tree/tree-1", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("by tree status: %d (%v)", resp.StatusCode, err)
	}
	var out []Review
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out == nil || len(out) != 0 {
		t.Fatalf("expected empty list, got %v %v", out, err)
	}
}
