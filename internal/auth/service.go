package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

const (
	issuer            = "dindion"
	minPasswordLength = 6
)

// Claims are the JWT claims of a session token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Config configures the identity service.
type Config struct {
	Secret     []byte
	SessionTTL time.Duration
	BcryptCost int
}

// Service registers users, signs them in and out, and tracks live sessions.
type Service struct {
	users   UserStore
	secret  []byte
	ttl     time.Duration
	cost    int
	revoked *gocache.Cache
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]map[*Session]struct{} // by token id
}

// Session follows the auth state of one token.
type Session struct {
	svc   *Service
	token string
	jti   string

	mu        sync.Mutex
	identity  *Identity
	listeners map[int]func(*Identity)
	nextID    int
	timer     *time.Timer
	closed    bool
}

func NewService(users UserStore, cfg Config, logger *slog.Logger) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		secret:   cfg.Secret,
		ttl:      cfg.SessionTTL,
		cost:     cfg.BcryptCost,
		revoked:  gocache.New(cfg.SessionTTL, 10*time.Minute),
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]map[*Session]struct{}),
	}
}

// Register creates an account and returns a session token for it.
func (s *Service) Register(ctx context.Context, email, password string) (Identity, string, error) {
	addr, err := normalizeEmail(email)
	if err != nil {
		return Identity{}, "", err
	}
	if len(password) < minPasswordLength {
		return Identity{}, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Identity{}, "", fmt.Errorf("hash password: %w", err)
	}
	u := User{UID: uuid.NewString(), Email: addr, PasswordHash: string(hash), CreatedAt: s.now()}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return Identity{}, "", fmt.Errorf("create user: %w", err)
	}

	id := Identity{UID: u.UID, Email: u.Email}
	token, err := s.issue(id)
	if err != nil {
		return Identity{}, "", err
	}
	s.logger.InfoContext(ctx, "User registered", "user_id", id.UID)
	return id, token, nil
}

// SignIn checks credentials and returns a new session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (Identity, string, error) {
	addr, err := normalizeEmail(email)
	if err != nil {
		return Identity{}, "", ErrInvalidCredentials
	}
	u, err := s.users.UserByEmail(ctx, addr)
	if errors.Is(err, ErrUserNotFound) {
		return Identity{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, "", fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Identity{}, "", ErrInvalidCredentials
	}

	id := Identity{UID: u.UID, Email: u.Email}
	token, err := s.issue(id)
	if err != nil {
		return Identity{}, "", err
	}
	s.logger.InfoContext(ctx, "User signed in", "user_id", id.UID)
	return id, token, nil
}

// SignOut revokes token and tells its live sessions the user is gone.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		ttl = time.Minute
	}
	s.revoked.Set(claims.ID, struct{}{}, ttl)

	s.mu.Lock()
	live := make([]*Session, 0, len(s.sessions[claims.ID]))
	for sess := range s.sessions[claims.ID] {
		live = append(live, sess)
	}
	s.mu.Unlock()
	for _, sess := range live {
		sess.end()
	}

	s.logger.InfoContext(ctx, "User signed out", "user_id", claims.Subject, "sessions", len(live))
	return nil
}

// Verify returns the identity behind a valid, unrevoked token.
func (s *Service) Verify(token string) (Identity, error) {
	claims, err := s.parse(token)
	if err != nil {
		return Identity{}, err
	}
	if _, revoked := s.revoked.Get(claims.ID); revoked {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UID: claims.Subject, Email: claims.Email}, nil
}

// Session opens an auth-state subscription for token. The session reports
// "signed out" when the token is revoked or expires.
func (s *Service) Session(token string) (*Session, error) {
	id, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	sess := &Session{svc: s, token: token, jti: claims.ID, identity: &id, listeners: make(map[int]func(*Identity))}
	s.mu.Lock()
	if s.sessions[claims.ID] == nil {
		s.sessions[claims.ID] = make(map[*Session]struct{})
	}
	s.sessions[claims.ID][sess] = struct{}{}
	s.mu.Unlock()

	sess.mu.Lock()
	if sess.identity != nil && !sess.closed {
		sess.timer = time.AfterFunc(claims.ExpiresAt.Time.Sub(s.now()), sess.end)
	}
	sess.mu.Unlock()
	return sess, nil
}

// ActiveSessions counts open sessions.
func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.sessions {
		n += len(m)
	}
	return n
}

func (s *Service) issue(id Identity) (string, error) {
	now := s.now()
	claims := Claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   id.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (s *Service) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) forget(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.sessions[sess.jti]; m != nil {
		delete(m, sess)
		if len(m) == 0 {
			delete(s.sessions, sess.jti)
		}
	}
}

// Identity returns the current principal, nil once signed out.
func (sess *Session) Identity() *Identity {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.identity
}

// Token returns the session token the session follows.
func (sess *Session) Token() string {
	return sess.token
}

// OnAuthChange calls fn with the current identity right away and again
// whenever it changes. The returned func removes fn.
func (sess *Session) OnAuthChange(fn func(*Identity)) func() {
	sess.mu.Lock()
	sess.nextID++
	id := sess.nextID
	sess.listeners[id] = fn
	current := sess.identity
	sess.mu.Unlock()

	fn(current)
	return func() {
		sess.mu.Lock()
		delete(sess.listeners, id)
		sess.mu.Unlock()
	}
}

// Close releases the session without signing out.
func (sess *Session) Close() {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return
	}
	sess.closed = true
	sess.listeners = make(map[int]func(*Identity))
	sess.stopTimer()
	sess.mu.Unlock()
	sess.svc.forget(sess)
}

// end moves the session to the signed-out state and notifies listeners once.
func (sess *Session) end() {
	sess.mu.Lock()
	if sess.closed || sess.identity == nil {
		sess.mu.Unlock()
		return
	}
	sess.identity = nil
	fns := make([]func(*Identity), 0, len(sess.listeners))
	for _, fn := range sess.listeners {
		fns = append(fns, fn)
	}
	sess.stopTimer()
	sess.mu.Unlock()

	for _, fn := range fns {
		fn(nil)
	}
	sess.svc.forget(sess)
}

// stopTimer must be called with sess.mu held.
func (sess *Session) stopTimer() {
	if sess.timer != nil {
		sess.timer.Stop()
	}
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}
