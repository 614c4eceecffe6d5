package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/lib/pq"

	"github.com/V4T54L/checkstream/internal/domain"
)

// pq error classes and codes this repository translates.
const (
	uniqueViolation         = pq.ErrorCode("23505")
	connectionExceptionCode = pq.ErrorClass("08")
)

// CheckRepository implements domain.CheckRepository on top of PostgreSQL.
type CheckRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCheckRepository creates a new PostgreSQL check repository.
func NewCheckRepository(db *sql.DB, logger *slog.Logger) *CheckRepository {
	return &CheckRepository{db: db, logger: logger.With("component", "postgres_check_repository")}
}

// FindTextByHash returns the text with the given content hash, or nil.
func (r *CheckRepository) FindTextByHash(ctx context.Context, hash string) (*domain.Text, error) {
	query := `SELECT id, hash, content, word_count, created_at FROM texts WHERE hash = $1 LIMIT 1`
	return r.scanText(r.db.QueryRowContext(ctx, query, hash), "find text by hash")
}

// FindTextByID returns the text with the given id, or nil.
func (r *CheckRepository) FindTextByID(ctx context.Context, id string) (*domain.Text, error) {
	query := `SELECT id, hash, content, word_count, created_at FROM texts WHERE id = $1 LIMIT 1`
	return r.scanText(r.db.QueryRowContext(ctx, query, id), "find text by id")
}

// CreateText inserts a text. A concurrent insert of the same hash is
// resolved by returning the row that won.
func (r *CheckRepository) CreateText(ctx context.Context, text *domain.Text) (*domain.Text, error) {
	query := `
		INSERT INTO texts (hash, content, word_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (hash) DO NOTHING
		RETURNING id, hash, content, word_count, created_at
	`
	created, err := r.scanText(r.db.QueryRowContext(ctx, query, text.Hash, text.Content, text.WordCount), "create text")
	if err != nil {
		return nil, err
	}
	if created == nil {
		return r.FindTextByHash(ctx, text.Hash)
	}
	return created, nil
}

// FindUserByID returns the user with the given provider id, or nil.
func (r *CheckRepository) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, email, image_url, created_at FROM users WHERE id = $1 LIMIT 1`

	var u domain.User
	var imageURL sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Email, &imageURL, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, translateError("find user by id", err)
	}
	if imageURL.Valid {
		u.ImageURL = &imageURL.String
	}
	return &u, nil
}

// CreateUser inserts a user.
func (r *CheckRepository) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (id, email, image_url)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	created := *user
	if err := r.db.QueryRowContext(ctx, query, user.ID, user.Email, user.ImageURL).Scan(&created.CreatedAt); err != nil {
		err = translateError("create user", err)
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("create user: %w", domain.ErrUserExists)
		}
		return nil, err
	}
	return &created, nil
}

// FindCheckBySlug returns the check with the given slug, or nil.
func (r *CheckRepository) FindCheckBySlug(ctx context.Context, slug string) (*domain.Check, error) {
	query := `
		SELECT id, slug, user_id, text_id, status, result, created_at, completed_at
		FROM checks
		WHERE slug = $1
		LIMIT 1
	`
	var c domain.Check
	var result []byte
	var completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, slug).Scan(
		&c.ID,
		&c.Slug,
		&c.UserID,
		&c.TextID,
		&c.Status,
		&result,
		&c.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, translateError("find check by slug", err)
	}
	if len(result) > 0 {
		c.Result = result
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	return &c, nil
}

// CreateCheck inserts a pending check.
func (r *CheckRepository) CreateCheck(ctx context.Context, check *domain.Check) (*domain.Check, error) {
	query := `
		INSERT INTO checks (slug, user_id, text_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	created := *check
	err := r.db.QueryRowContext(ctx, query, check.Slug, check.UserID, check.TextID, string(check.Status)).
		Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, translateError("create check", err)
	}
	return &created, nil
}

// UpdateCheckResult stores the result and marks the check completed.
func (r *CheckRepository) UpdateCheckResult(ctx context.Context, slug string, result []byte, completedAt time.Time) error {
	query := `UPDATE checks SET result = $1, status = $2, completed_at = $3 WHERE slug = $4`
	res, err := r.db.ExecContext(ctx, query, result, string(domain.CheckStatusCompleted), completedAt, slug)
	if err != nil {
		return translateError("update check result", err)
	}
	return requireRow(res, slug)
}

// UpdateCheckStatus sets the status and completion time of a check.
func (r *CheckRepository) UpdateCheckStatus(ctx context.Context, slug string, status domain.CheckStatus, completedAt time.Time) error {
	query := `UPDATE checks SET status = $1, completed_at = $2 WHERE slug = $3`
	res, err := r.db.ExecContext(ctx, query, string(status), completedAt, slug)
	if err != nil {
		return translateError("update check status", err)
	}
	return requireRow(res, slug)
}

func (r *CheckRepository) scanText(row *sql.Row, op string) (*domain.Text, error) {
	var t domain.Text
	if err := row.Scan(&t.ID, &t.Hash, &t.Content, &t.WordCount, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, translateError(op, err)
	}
	return &t, nil
}

func requireRow(res sql.Result, slug string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("check %s: %w", slug, domain.ErrNotFound)
	}
	return nil
}

// translateError maps driver errors onto domain errors so raw storage
// messages do not leak to callers.
func translateError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == uniqueViolation:
			return fmt.Errorf("%s: %w", op, domain.ErrConflict)
		case pqErr.Code.Class() == connectionExceptionCode:
			return fmt.Errorf("%s: %w", op, domain.ErrDatabaseConnection)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s: %w", op, domain.ErrDatabaseConnection)
	}
	return fmt.Errorf("%s: %w", op, err)
}
