package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/V4T54L/checkstream/internal/domain"
)

// MockStreamRepository is a mock implementation of domain.StreamRepository,
// domain.StreamPublisher and domain.StreamAdminRepository for testing.
type MockStreamRepository struct {
	mu         sync.Mutex
	Appended   map[string][]domain.StreamEvent
	Published  []domain.StreamEvent
	ListResult []domain.StreamEvent
	InfoResult *domain.StreamInfo
	TrimmedTo  int64
	AppendErr  error
	ListErr    error
	ExistsErr  error
	PublishErr error
	InfoErr    error
	TrimErr    error
}

func (m *MockStreamRepository) Append(ctx context.Context, streamID string, event domain.StreamEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	if m.Appended == nil {
		m.Appended = make(map[string][]domain.StreamEvent)
	}
	m.Appended[streamID] = append(m.Appended[streamID], event)
	return nil
}

// List returns ListResult when set, otherwise whatever was appended.
func (m *MockStreamRepository) List(ctx context.Context, streamID string) ([]domain.StreamEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if m.ListResult != nil {
		return m.ListResult, nil
	}
	return append([]domain.StreamEvent(nil), m.Appended[streamID]...), nil
}

func (m *MockStreamRepository) Exists(ctx context.Context, streamID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	return len(m.Appended[streamID]) > 0, nil
}

func (m *MockStreamRepository) Publish(ctx context.Context, streamID string, event domain.StreamEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, event)
	return nil
}

func (m *MockStreamRepository) Info(ctx context.Context, streamID string) (*domain.StreamInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InfoErr != nil {
		return nil, m.InfoErr
	}
	return m.InfoResult, nil
}

func (m *MockStreamRepository) Trim(ctx context.Context, streamID string, maxLen int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TrimErr != nil {
		return m.TrimErr
	}
	m.TrimmedTo = maxLen
	return nil
}

// PublishedEvents returns a copy of the events published so far.
func (m *MockStreamRepository) PublishedEvents() []domain.StreamEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StreamEvent(nil), m.Published...)
}

// MockCheckRepository is an in-memory mock implementation of domain.CheckRepository.
type MockCheckRepository struct {
	mu        sync.Mutex
	Texts     map[string]*domain.Text // by hash
	Users     map[string]*domain.User
	Checks    map[string]*domain.Check // by slug
	Calls     int
	FindErr   error
	CreateErr error
	UpdateErr error
}

func NewMockCheckRepository() *MockCheckRepository {
	return &MockCheckRepository{
		Texts:  make(map[string]*domain.Text),
		Users:  make(map[string]*domain.User),
		Checks: make(map[string]*domain.Check),
	}
}

func (m *MockCheckRepository) FindTextByHash(ctx context.Context, hash string) (*domain.Text, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	return m.Texts[hash], nil
}

func (m *MockCheckRepository) FindTextByID(ctx context.Context, id string) (*domain.Text, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	for _, t := range m.Texts {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (m *MockCheckRepository) CreateText(ctx context.Context, text *domain.Text) (*domain.Text, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	created := *text
	if created.ID == "" {
		created.ID = text.Hash[:12]
	}
	created.CreatedAt = time.Now()
	m.Texts[text.Hash] = &created
	return &created, nil
}

func (m *MockCheckRepository) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	return m.Users[id], nil
}

func (m *MockCheckRepository) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	created := *user
	created.CreatedAt = time.Now()
	m.Users[user.ID] = &created
	return &created, nil
}

func (m *MockCheckRepository) FindCheckBySlug(ctx context.Context, slug string) (*domain.Check, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	return m.Checks[slug], nil
}

func (m *MockCheckRepository) CreateCheck(ctx context.Context, check *domain.Check) (*domain.Check, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	created := *check
	created.ID = check.Slug
	created.CreatedAt = time.Now()
	m.Checks[check.Slug] = &created
	return &created, nil
}

func (m *MockCheckRepository) UpdateCheckResult(ctx context.Context, slug string, result []byte, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if c, ok := m.Checks[slug]; ok {
		c.Result = result
		c.Status = domain.CheckStatusCompleted
		c.CompletedAt = &completedAt
	}
	return nil
}

func (m *MockCheckRepository) UpdateCheckStatus(ctx context.Context, slug string, status domain.CheckStatus, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if c, ok := m.Checks[slug]; ok {
		c.Status = status
		c.CompletedAt = &completedAt
	}
	return nil
}

// CallCount returns how many repository methods were invoked.
func (m *MockCheckRepository) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}
