package storage

import (
	"context"
	"path"
	"strings"
	"time"

	"backend-scampr/internal/db"
	"backend-scampr/internal/shared/validate"

	"github.com/google/uuid"
)

const (
	uploadWindow    = 15 * time.Minute
	defaultFileName = "upload"
)

var nowFn = time.Now

type Service struct {
	db      db.Querier
	baseURL string
}

func NewService(conn db.Querier, baseURL string) *Service {
	return &Service{db: conn, baseURL: strings.TrimRight(baseURL, "/")}
}

// Upload registers an object owned by userID and returns where to put it.
func (s *Service) Upload(ctx context.Context, userID string, req UploadRequest) (Object, error) {
	if err := validate.Struct(req); err != nil {
		return Object{}, err
	}

	id := uuid.NewString()
	obj := Object{
		ID:        id,
		UserID:    userID,
		URL:       s.objectURL(req.Kind, id, req.FileName),
		Kind:      req.Kind,
		ExpiresAt: nowFn().Add(uploadWindow),
	}
	if err := s.SaveObject(ctx, obj); err != nil {
		return Object{}, err
	}
	return obj, nil
}

func (s *Service) SaveObject(ctx context.Context, obj Object) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO storage_objects (id, user_id, url, kind)
		VALUES ($1,$2,$3,$4)
	`, obj.ID, obj.UserID, obj.URL, obj.Kind)
	return err
}

func (s *Service) objectURL(kind, id, fileName string) string {
	name := path.Base(strings.TrimSpace(fileName))
	if name == "." || name == "/" || name == "" {
		name = defaultFileName
	}
	return s.baseURL + "/" + kind + "/" + id + "/" + name
}
