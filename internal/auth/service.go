package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend-scampr/internal/aggregate"
	"backend-scampr/internal/db"
	"backend-scampr/internal/shared/apperr"
	"backend-scampr/internal/shared/validate"
	"backend-scampr/internal/stream"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultAccessTokenTTL = 30 * time.Minute
	refreshTokenTTL       = 7 * 24 * time.Hour
)

const userColumns = `id, email, display_name, password_hash, firebase_uid, profile_image_url,
		       climbed_trees, added_trees, total_climbs, joined_date, is_active`

var (
	hashPasswordFn    = bcrypt.GenerateFromPassword
	parseWithClaimsFn = jwt.ParseWithClaims
	signTokenFn       = func(s *Service, userID string, ttl time.Duration) (string, error) {
		return s.signToken(userID, ttl)
	}
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInvalidToken       = errors.New("token invalid")
)

// Publisher receives events for trees removed along with an account.
type Publisher interface {
	Publish(ctx context.Context, ev stream.Event)
}

type Service struct {
	secret    []byte
	db        db.TxBeginner
	accessTTL time.Duration
	events    Publisher
	log       *zap.Logger
}

type Option func(*Service)

func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func NewService(secret string, conn db.TxBeginner, opts ...Option) *Service {
	s := &Service{
		secret:    []byte(secret),
		db:        conn,
		accessTTL: defaultAccessTokenTTL,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return AuthResponse{}, err
	}

	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResponse{}, err
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		FirebaseUID:  req.FirebaseUID,
		ClimbedTrees: []string{},
		AddedTrees:   []string{},
		IsActive:     true,
	}
	if err := s.insertUser(ctx, &user); err != nil {
		return AuthResponse{}, err
	}
	return s.respond(ctx, user)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return AuthResponse{}, err
	}

	user, err := s.userByEmail(ctx, req.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		return AuthResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return AuthResponse{}, err
	}
	if !user.IsActive || user.PasswordHash == "" {
		return AuthResponse{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return AuthResponse{}, ErrInvalidCredentials
	}
	return s.respond(ctx, user)
}

// Sync links an external identity to the account with the same email. The
// display name is taken over only when the account had no external id yet.
// Unknown emails get a password-less account.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return AuthResponse{}, err
	}
	email := req.Email

	user, err := s.userByEmail(ctx, email)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		uid := req.FirebaseUID
		user = User{
			ID:           uuid.NewString(),
			Email:        email,
			DisplayName:  req.DisplayName,
			FirebaseUID:  &uid,
			ClimbedTrees: []string{},
			AddedTrees:   []string{},
			IsActive:     true,
		}
		if err := s.insertUser(ctx, &user); err != nil {
			return AuthResponse{}, err
		}
	case err != nil:
		return AuthResponse{}, err
	case user.FirebaseUID == nil || *user.FirebaseUID == "":
		_, err := s.db.Exec(ctx, `
			UPDATE users SET firebase_uid=$2, display_name=$3
			WHERE id=$1
		`, user.ID, req.FirebaseUID, req.DisplayName)
		if err != nil {
			return AuthResponse{}, err
		}
		uid := req.FirebaseUID
		user.FirebaseUID = &uid
		user.DisplayName = req.DisplayName
	}
	return s.respond(ctx, user)
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user %s", id)
	}
	return user, err
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY joined_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateProfile changes the display name and profile image. Reviews keep the
// display name they were written under.
func (s *Service) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (User, error) {
	if err := validate.Struct(req); err != nil {
		return User{}, err
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.ProfileImageURL != nil {
		user.ProfileImageURL = req.ProfileImageURL
	}

	_, err = s.db.Exec(ctx, `
		UPDATE users SET display_name=$2, profile_image_url=$3
		WHERE id=$1
	`, user.ID, user.DisplayName, user.ProfileImageURL)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// DeleteAccount removes the user and everything they own in one transaction:
// their reviews, their trees with every review on them, their refresh tokens
// and storage objects. Aggregates of other trees the user reviewed are
// recomputed and deleted trees vanish from other users' climbed_trees.
func (s *Service) DeleteAccount(ctx context.Context, requesterID, userID string) error {
	if requesterID != userID {
		return apperr.Forbidden("can only delete your own account")
	}

	var (
		ownTrees []string
		touched  = map[string]aggregate.TreeStats{}
	)
	err := db.WithTx(ctx, s.db, func(q db.Querier) error {
		tag, err := q.Exec(ctx, `SELECT 1 FROM users WHERE id=$1 FOR UPDATE`, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("user %s", userID)
		}

		reviewed, err := collectIDs(ctx, q, `SELECT DISTINCT tree_id FROM reviews WHERE user_id=$1 ORDER BY tree_id`, userID)
		if err != nil {
			return err
		}
		if ownTrees, err = collectIDs(ctx, q, `SELECT id FROM trees WHERE user_id=$1 ORDER BY id`, userID); err != nil {
			return err
		}

		if _, err := q.Exec(ctx, `DELETE FROM reviews WHERE user_id=$1`, userID); err != nil {
			return err
		}
		owned := make(map[string]bool, len(ownTrees))
		for _, id := range ownTrees {
			owned[id] = true
			if err := aggregate.DeleteTree(ctx, q, id); err != nil {
				return err
			}
		}
		for _, id := range reviewed {
			if owned[id] {
				continue
			}
			if _, err := aggregate.LockTree(ctx, q, id); err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					continue
				}
				return err
			}
			stats, err := aggregate.RecomputeTree(ctx, q, id)
			if err != nil {
				return err
			}
			touched[id] = stats
		}

		if _, err := q.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id=$1`, userID); err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `DELETE FROM storage_objects WHERE user_id=$1`, userID); err != nil {
			return err
		}
		_, err = q.Exec(ctx, `DELETE FROM users WHERE id=$1`, userID)
		return err
	})
	if err != nil {
		return err
	}

	s.log.Info("account deleted",
		zap.String("user_id", userID),
		zap.Int("trees_removed", len(ownTrees)),
		zap.Int("trees_recomputed", len(touched)))
	if s.events != nil {
		for _, id := range ownTrees {
			s.events.Publish(ctx, stream.Event{Type: stream.EventTreeDeleted, TreeID: id})
		}
		for id, stats := range touched {
			s.events.Publish(ctx, stream.Event{
				Type:          stream.EventReviewDeleted,
				TreeID:        id,
				AverageRating: stats.AverageRating,
				ClimbCount:    stats.ClimbCount,
			})
		}
	}
	return nil
}

func (s *Service) GenerateTokens(ctx context.Context, userID string) (TokenResponse, error) {
	access, err := signTokenFn(s, userID, s.accessTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := signTokenFn(s, userID, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, userID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}

	userID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || userID != claims.UserID || time.Now().After(expiresAt) {
		return "", errors.New("refresh token invalid")
	}
	return claims.UserID, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *Service) respond(ctx context.Context, user User) (AuthResponse, error) {
	tokens, err := s.GenerateTokens(ctx, user.ID)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{TokenResponse: tokens, User: user}, nil
}

func (s *Service) insertUser(ctx context.Context, user *User) error {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1)`, user.Email).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("email already registered")
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, firebase_uid)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING joined_date
	`, user.ID, user.Email, user.DisplayName, user.PasswordHash, user.FirebaseUID)
	if err := row.Scan(&user.JoinedDate); err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.Conflict("email already registered")
		}
		return err
	}
	return nil
}

func (s *Service) userByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user with email %s", email)
	}
	return user, err
}

func (s *Service) signToken(userID string, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), userID, token, time.Now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var userID string
	var expiresAt time.Time
	if err := row.Scan(&userID, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return userID, expiresAt, nil
}

func collectIDs(ctx context.Context, q db.Querier, sql string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.FirebaseUID, &u.ProfileImageURL,
		&u.ClimbedTrees, &u.AddedTrees, &u.TotalClimbs, &u.JoinedDate, &u.IsActive)
	if u.ClimbedTrees == nil {
		u.ClimbedTrees = []string{}
	}
	if u.AddedTrees == nil {
		u.AddedTrees = []string{}
	}
	return u, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
