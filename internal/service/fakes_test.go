package service

import (
	"context"
	"sync"
	"time"

	"cred-lifecycle/internal/domain"
	"cred-lifecycle/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockUserRepo struct {
	users       map[string]domain.User
	createErr   error
	updateErr   error
	updateCalls int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.users[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	user, ok := m.users[email]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *mockUserRepo) GetProfile(ctx context.Context, email string) (domain.Profile, error) {
	user, err := m.GetByEmail(ctx, email)
	if err != nil {
		return domain.Profile{}, err
	}
	return user.Profile(), nil
}

func (m *mockUserRepo) Update(_ context.Context, user domain.User) error {
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.users[user.Email]; !ok {
		return repository.ErrNotFound
	}
	m.users[user.Email] = user
	return nil
}

type mockEmailSender struct {
	lastTo      string
	lastSubject string
	lastBody    string
	calls       int
	err         error
	onSend      func()
}

func (m *mockEmailSender) Send(_ context.Context, toEmail, subject, body string) error {
	m.calls++
	m.lastTo = toEmail
	m.lastSubject = subject
	m.lastBody = body
	if m.onSend != nil {
		m.onSend()
	}
	return m.err
}
