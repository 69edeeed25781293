package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tcglibrary/catalog/internal/repository"
)

// Mock implementations for testing

// mockUserRepository implements repository.UserRepository for testing
type mockUserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*repository.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[uuid.UUID]*repository.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *repository.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return repository.ErrUsernameAlreadyExists
		}
		if u.Email == user.Email {
			return repository.ErrEmailAlreadyExists
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepository) find(match func(*repository.User) bool) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	return m.find(func(u *repository.User) bool { return u.ID == id })
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return m.find(func(u *repository.User) bool { return u.Email == email })
}

func (m *mockUserRepository) GetByEmailOrUsername(ctx context.Context, identifier string) (*repository.User, error) {
	return m.find(func(u *repository.User) bool { return u.Email == identifier || u.Username == identifier })
}

func (m *mockUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.find(func(u *repository.User) bool { return u.Username == username })
	return err == nil, nil
}

func (m *mockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.find(func(u *repository.User) bool { return u.Email == email })
	return err == nil, nil
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// mockSessionRepository implements repository.SessionRepository for testing
type mockSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*repository.Session
	cleaned  chan struct{}
}

func newMockSessionRepository() *mockSessionRepository {
	return &mockSessionRepository{
		sessions: make(map[string]*repository.Session),
		cleaned:  make(chan struct{}, 16),
	}
}

func (m *mockSessionRepository) Create(ctx context.Context, session *repository.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session.ID = uuid.New()
	session.CreatedAt = time.Now().UTC()
	copied := *session
	m.sessions[session.TokenHash] = &copied
	return nil
}

func (m *mockSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*repository.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[tokenHash]; ok && session.ExpiresAt.After(time.Now().UTC()) {
		copied := *session
		return &copied, nil
	}
	return nil, repository.ErrSessionNotFound
}

func (m *mockSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[tokenHash]; ok {
		delete(m.sessions, tokenHash)
		return nil
	}
	return repository.ErrSessionNotFound
}

func (m *mockSessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, session := range m.sessions {
		if session.UserID == userID {
			delete(m.sessions, hash)
		}
	}
	return nil
}

func (m *mockSessionRepository) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	var n int64
	now := time.Now().UTC()
	for hash, session := range m.sessions {
		if session.ExpiresAt.Before(now) {
			delete(m.sessions, hash)
			n++
		}
	}
	m.mu.Unlock()

	select {
	case m.cleaned <- struct{}{}:
	default:
	}
	return n, nil
}

func (m *mockSessionRepository) countForUser(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, session := range m.sessions {
		if session.UserID == userID {
			n++
		}
	}
	return n
}

// mockResetTokenRepository implements repository.ResetTokenRepository for testing
type mockResetTokenRepository struct {
	mu        sync.Mutex
	tokens    map[uuid.UUID]*repository.PasswordResetToken
	createErr error
}

func newMockResetTokenRepository() *mockResetTokenRepository {
	return &mockResetTokenRepository{tokens: make(map[uuid.UUID]*repository.PasswordResetToken)}
}

func (m *mockResetTokenRepository) Create(ctx context.Context, token *repository.PasswordResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	token.ID = uuid.New()
	token.CreatedAt = time.Now().UTC()
	copied := *token
	m.tokens[token.ID] = &copied
	return nil
}

func (m *mockResetTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*repository.PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == tokenHash {
			copied := *t
			return &copied, nil
		}
	}
	return nil, repository.ErrResetTokenNotFound
}

func (m *mockResetTokenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *mockResetTokenRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, id)
		}
	}
	return nil
}

func (m *mockResetTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for id, t := range m.tokens {
		if t.ExpiresAt.Before(now) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func (m *mockResetTokenRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// mockMailer records reset mails instead of sending them
type mockMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

type sentMail struct {
	to, token, displayName string
}

func (m *mockMailer) SendPasswordReset(ctx context.Context, to, token, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, token: token, displayName: displayName})
	return nil
}

func (m *mockMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// authFixture bundles a service stack backed by the mocks
type authFixture struct {
	auth     *AuthService
	reset    *ResetService
	users    *mockUserRepository
	sessions *mockSessionRepository
	resets   *mockResetTokenRepository
	mailer   *mockMailer
}

func newTestTokenService() *TokenService {
	return NewTokenService(TokenServiceConfig{
		Secret: "test-session-secret-key-32-chars",
		Expiry: 7 * 24 * time.Hour,
		Issuer: "test-issuer",
	})
}

func newAuthFixture() *authFixture {
	users := newMockUserRepository()
	sessions := newMockSessionRepository()
	resets := newMockResetTokenRepository()
	mailer := &mockMailer{}
	passwords := NewPasswordValidatorWithCost(4)

	return &authFixture{
		auth:     NewAuthService(users, sessions, newTestTokenService(), passwords, nil),
		reset:    NewResetService(users, sessions, resets, passwords, mailer, time.Hour, nil),
		users:    users,
		sessions: sessions,
		resets:   resets,
		mailer:   mailer,
	}
}
