package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestService() *Service {
	return NewService(NewMemoryUsers(), Config{
		Secret:     []byte("test-secret"),
		SessionTTL: time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, nil)
}

func TestRegisterAndSignIn(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	id, token, err := svc.Register(ctx, " Ana@Example.com ", "secret1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id.UID == "" || id.Email != "ana@example.com" {
		t.Fatalf("unexpected identity %+v", id)
	}
	got, err := svc.Verify(token)
	if err != nil || got != id {
		t.Fatalf("verify: %+v %v", got, err)
	}

	again, _, err := svc.SignIn(ctx, "ANA@example.com", "secret1")
	if err != nil || again.UID != id.UID {
		t.Fatalf("sign in: %+v %v", again, err)
	}
}

func TestRegisterErrors(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, _, err := svc.Register(ctx, "a@b.com", "secret1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"duplicate", "A@b.com", "secret1", ErrEmailTaken},
		{"bad email", "not-an-email", "secret1", ErrInvalidEmail},
		{"short password", "c@d.com", "12345", ErrWeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := svc.Register(ctx, tc.email, tc.password); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, _, err := svc.Register(ctx, "a@b.com", "secret1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "a@b.com", "wrong!!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "x@b.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestSignOutEndsSessions(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, token, err := svc.Register(ctx, "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	sess, err := svc.Session(token)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	var states []*Identity
	unsubscribe := sess.OnAuthChange(func(id *Identity) { states = append(states, id) })
	defer unsubscribe()

	if len(states) != 1 || states[0] == nil {
		t.Fatalf("expected immediate signed-in callback, got %v", states)
	}
	if svc.ActiveSessions() != 1 {
		t.Fatalf("expected one active session")
	}

	if err := svc.SignOut(ctx, token); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if len(states) != 2 || states[1] != nil {
		t.Fatalf("expected signed-out callback, got %v", states)
	}
	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("revoked token still valid: %v", err)
	}
	if sess.Identity() != nil || svc.ActiveSessions() != 0 {
		t.Fatalf("session not ended")
	}
	if _, err := svc.Session(token); err == nil {
		t.Fatalf("expected error opening session for revoked token")
	}
}

func TestCloseDoesNotSignOut(t *testing.T) {
	svc := newTestService()
	_, token, _ := svc.Register(context.Background(), "a@b.com", "secret1")
	sess, err := svc.Session(token)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	calls := 0
	sess.OnAuthChange(func(*Identity) { calls++ })
	sess.Close()
	sess.Close()
	if calls != 1 || svc.ActiveSessions() != 0 {
		t.Fatalf("unexpected state calls=%d active=%d", calls, svc.ActiveSessions())
	}
	if _, err := svc.Verify(token); err != nil {
		t.Fatalf("token should stay valid: %v", err)
	}
}

func TestVerifyRejectsForeignAndExpiredTokens(t *testing.T) {
	svc := newTestService()
	_, token, _ := svc.Register(context.Background(), "a@b.com", "secret1")

	other := NewService(NewMemoryUsers(), Config{Secret: []byte("other"), BcryptCost: bcrypt.MinCost}, nil)
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign token to fail, got %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
	if _, err := svc.Verify("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected garbage to fail, got %v", err)
	}
}
