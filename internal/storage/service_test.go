package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"backend-scampr/internal/shared/apperr"

	"github.com/pashagolub/pgxmock/v3"
)

var errSave = errors.New("save error")

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestUpload(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	orig := nowFn
	nowFn = func() time.Time { return fixed }
	defer func() { nowFn = orig }()

	mock := newMockPool(t)
	mock.ExpectExec(`INSERT INTO storage_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), KindTreeImage).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService(mock, "https://storage.example/")
	obj, err := svc.Upload(context.Background(), "user-1", UploadRequest{FileName: "oak.jpg", Kind: KindTreeImage})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	want := "https://storage.example/tree_image/" + obj.ID + "/oak.jpg"
	if obj.URL != want {
		t.Fatalf("url = %q, want %q", obj.URL, want)
	}
	if !obj.ExpiresAt.Equal(fixed.Add(uploadWindow)) {
		t.Fatalf("unexpected expiry: %v", obj.ExpiresAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUploadFileNameIsSanitised(t *testing.T) {
	svc := NewService(nil, "https://storage.example")

	if got := svc.objectURL(KindProfileImage, "id-1", "../../etc/passwd"); got != "https://storage.example/profile_image/id-1/passwd" {
		t.Fatalf("unexpected url: %s", got)
	}
	if got := svc.objectURL(KindProfileImage, "id-1", "  "); !strings.HasSuffix(got, "/"+defaultFileName) {
		t.Fatalf("expected default file name, got %s", got)
	}
}

func TestUploadRejectsUnknownKind(t *testing.T) {
	svc := NewService(newMockPool(t), "https://storage.example")

	_, err := svc.Upload(context.Background(), "user-1", UploadRequest{FileName: "a.png", Kind: "photo"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaveObjectError(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectExec(`INSERT INTO storage_objects`).
		WithArgs("obj-1", "user-1", "url", KindTreeImage).
		WillReturnError(errSave)

	err := NewService(mock, "").SaveObject(context.Background(), Object{ID: "obj-1", UserID: "user-1", URL: "url", Kind: KindTreeImage})
	if !errors.Is(err, errSave) {
		t.Fatalf("expected save error, got %v", err)
	}
}
