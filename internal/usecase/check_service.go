package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/checkstream/internal/adapter/metrics"
	"github.com/V4T54L/checkstream/internal/adapter/pii"
	"github.com/V4T54L/checkstream/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SubmitCheckRequest is everything needed to start a new check.
type SubmitCheckRequest struct {
	UserID   string  `json:"user_id"`
	Email    string  `json:"email"`
	ImageURL *string `json:"image_url,omitempty"`
	Content  string  `json:"content"`
}

// CheckUseCase manages user, text and check records and keeps each check's
// progress stream in step with its status.
type CheckUseCase struct {
	repo    domain.CheckRepository
	streams *EventStreamUseCase
	logger  *slog.Logger
	metrics *metrics.StreamMetrics
	now     func() time.Time
}

// NewCheckUseCase creates a new CheckUseCase.
func NewCheckUseCase(repo domain.CheckRepository, streams *EventStreamUseCase, logger *slog.Logger, m *metrics.StreamMetrics) *CheckUseCase {
	return &CheckUseCase{
		repo:    repo,
		streams: streams,
		logger:  logger.With("component", "check_service"),
		metrics: m,
		now:     time.Now,
	}
}

// ContentHash is the identity of a text: sha256 of its trimmed content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}

// WordCount counts whitespace-separated words of the trimmed content.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

// ExtractProviderID pulls the identity-provider user id out of an opaque
// user id such as "oauth|user_123" or "clerk:user_123".
func ExtractProviderID(userID string) string {
	userID = strings.TrimSpace(userID)
	if i := strings.LastIndexAny(userID, "|:"); i >= 0 {
		return userID[i+1:]
	}
	return userID
}

// FindOrCreateText returns the text for content, creating it on first
// submission. Contents that are equal once trimmed share one record.
func (uc *CheckUseCase) FindOrCreateText(ctx context.Context, content string) (*domain.Text, error) {
	if strings.TrimSpace(content) == "" {
		uc.record("find_or_create_text", domain.ErrEmptyContent)
		return nil, domain.ErrEmptyContent
	}

	hash := ContentHash(content)
	existing, err := uc.repo.FindTextByHash(ctx, hash)
	if err != nil {
		uc.record("find_or_create_text", err)
		return nil, err
	}
	if existing != nil {
		uc.record("find_or_create_text", nil)
		return existing, nil
	}

	text, err := uc.repo.CreateText(ctx, &domain.Text{
		Hash:      hash,
		Content:   content,
		WordCount: strconv.Itoa(WordCount(content)),
	})
	uc.record("find_or_create_text", err)
	return text, err
}

// FindTextByID returns the text with id or domain.ErrNotFound.
func (uc *CheckUseCase) FindTextByID(ctx context.Context, id string) (*domain.Text, error) {
	text, err := uc.repo.FindTextByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if text == nil {
		return nil, domain.ErrNotFound
	}
	return text, nil
}

// FindUserByID looks a user up by opaque user id; nil when unknown.
func (uc *CheckUseCase) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return uc.repo.FindUserByID(ctx, ExtractProviderID(userID))
}

// FindOrCreateUser validates the input, then returns the existing user or
// creates one. Storage errors come back as domain errors.
func (uc *CheckUseCase) FindOrCreateUser(ctx context.Context, userID, email string, imageURL *string) (*domain.User, error) {
	user, err := uc.findOrCreateUser(ctx, userID, email, imageURL)
	uc.record("find_or_create_user", err)
	if err != nil {
		uc.logger.Error("database operation failed",
			"operation", "findOrCreateUser",
			"user_id", pii.MaskID(userID),
			"email", pii.MaskEmail(email),
			"error", err,
		)
		return nil, err
	}
	return user, nil
}

func (uc *CheckUseCase) findOrCreateUser(ctx context.Context, userID, email string, imageURL *string) (*domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrInvalidUserID
	}
	if !emailPattern.MatchString(email) {
		return nil, domain.ErrInvalidEmail
	}

	providerID := ExtractProviderID(userID)
	if providerID == "" {
		return nil, domain.ErrInvalidUserID
	}

	existing, err := uc.repo.FindUserByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		uc.logger.Debug("found existing user", "user_id", pii.MaskID(providerID))
		return existing, nil
	}

	var image *string
	if imageURL != nil {
		if trimmed := strings.TrimSpace(*imageURL); trimmed != "" {
			image = &trimmed
		}
	}

	uc.logger.Info("creating new user", "user_id", pii.MaskID(providerID), "email", pii.MaskEmail(email))
	return uc.repo.CreateUser(ctx, &domain.User{
		ID:       providerID,
		Email:    strings.ToLower(strings.TrimSpace(email)),
		ImageURL: image,
	})
}

// CreateCheck records a pending check for the text on behalf of the user.
func (uc *CheckUseCase) CreateCheck(ctx context.Context, slug, userID, textID string) (*domain.Check, error) {
	check, err := uc.repo.CreateCheck(ctx, &domain.Check{
		Slug:   slug,
		UserID: ExtractProviderID(userID),
		TextID: textID,
		Status: domain.CheckStatusPending,
	})
	uc.record("create_check", err)
	return check, err
}

// GetCheck returns the check with slug or domain.ErrNotFound.
func (uc *CheckUseCase) GetCheck(ctx context.Context, slug string) (*domain.Check, error) {
	check, err := uc.repo.FindCheckBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if check == nil {
		return nil, domain.ErrNotFound
	}
	return check, nil
}

// UpdateCheckResult stores the result and marks the check completed.
func (uc *CheckUseCase) UpdateCheckResult(ctx context.Context, slug string, result json.RawMessage) error {
	err := uc.repo.UpdateCheckResult(ctx, slug, result, uc.now())
	uc.record("update_check_result", err)
	return err
}

// UpdateCheckStatus moves a check to a final status. Pending is the initial
// state and cannot be set here.
func (uc *CheckUseCase) UpdateCheckStatus(ctx context.Context, slug string, status domain.CheckStatus) error {
	if _, err := domain.ParseCheckStatus(string(status)); err != nil || status == domain.CheckStatusPending {
		uc.record("update_check_status", domain.ErrInvalidStatus)
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	err := uc.repo.UpdateCheckStatus(ctx, slug, status, uc.now())
	uc.record("update_check_status", err)
	return err
}

// SubmitCheck registers the user and text, creates a pending check and opens
// its progress stream. The check slug doubles as the stream id.
func (uc *CheckUseCase) SubmitCheck(ctx context.Context, req SubmitCheckRequest) (*domain.Check, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, domain.ErrEmptyContent
	}

	user, err := uc.FindOrCreateUser(ctx, req.UserID, req.Email, req.ImageURL)
	if err != nil {
		return nil, err
	}
	text, err := uc.FindOrCreateText(ctx, req.Content)
	if err != nil {
		return nil, err
	}

	check, err := uc.CreateCheck(ctx, uuid.NewString(), user.ID, text.ID)
	if err != nil {
		return nil, err
	}

	if err := uc.streams.CreateStream(ctx, check.Slug); err != nil {
		uc.streamOutOfSync("submit_check", check.Slug, check.Status, err)
		return nil, fmt.Errorf("failed to open stream for check %s: %w", check.Slug, err)
	}

	uc.logger.Info("check submitted", "check", check.Slug, "text_id", text.ID, "word_count", text.WordCount)
	return check, nil
}

// CompleteCheck stores the result and closes the check's stream.
func (uc *CheckUseCase) CompleteCheck(ctx context.Context, slug string, result json.RawMessage) error {
	if err := uc.UpdateCheckResult(ctx, slug, result); err != nil {
		return err
	}
	if err := uc.streams.CompleteStream(ctx, slug); err != nil {
		uc.streamOutOfSync("complete_check", slug, domain.CheckStatusCompleted, err)
		return err
	}
	return nil
}

// FinishCheck sets a final status and closes the check's stream, as an
// error event when the check failed.
func (uc *CheckUseCase) FinishCheck(ctx context.Context, slug string, status domain.CheckStatus, message string) error {
	if err := uc.UpdateCheckStatus(ctx, slug, status); err != nil {
		return err
	}
	var err error
	if status == domain.CheckStatusFailed {
		if message == "" {
			message = "check failed"
		}
		err = uc.streams.FailStream(ctx, slug, message)
	} else {
		err = uc.streams.CompleteStream(ctx, slug)
	}
	if err != nil {
		uc.streamOutOfSync("finish_check", slug, status, err)
		return err
	}
	return nil
}

// streamOutOfSync reports a check whose record was committed while its
// stream write failed. The record is not rolled back; the slug and stored
// status are logged so the stream can be reconciled by hand.
func (uc *CheckUseCase) streamOutOfSync(operation, slug string, status domain.CheckStatus, err error) {
	uc.record("sync_stream", err)
	uc.logger.Error("check record committed but stream update failed",
		"operation", operation,
		"check_slug", slug,
		"check_status", string(status),
		"error", err,
	)
}

func (uc *CheckUseCase) record(operation string, err error) {
	if uc.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case IsValidationError(err):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	uc.metrics.CheckOperations.WithLabelValues(operation, outcome).Inc()
}

// IsValidationError reports whether err was caused by bad caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, domain.ErrInvalidUserID) ||
		errors.Is(err, domain.ErrInvalidEmail) ||
		errors.Is(err, domain.ErrInvalidStatus) ||
		errors.Is(err, domain.ErrEmptyContent) ||
		errors.Is(err, domain.ErrInvalidStreamID) ||
		errors.Is(err, domain.ErrInvalidEventType) ||
		errors.Is(err, domain.ErrInvalidMaxLen)
}
