package httpapi

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/store/memory"
)

func newTestAuthManager(t *testing.T) (*AuthManager, *memory.Store) {
	t.Helper()
	repo := memory.New()
	return NewAuthManager("test-secret-key", time.Hour, repo), repo
}

func registerUser(t *testing.T, auth *AuthManager, email string) domain.AuthPayload {
	t.Helper()
	payload, err := auth.Register(context.Background(), domain.RegisterRequest{
		FullName:        "Test Kasir",
		Email:           email,
		Password:        "rahasia1",
		ConfirmPassword: "rahasia1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return payload
}

func TestRegisterForcesKasirRole(t *testing.T) {
	auth, _ := newTestAuthManager(t)

	payload := registerUser(t, auth, "kasir@test.local")
	if payload.User.Role != domain.RoleKasir {
		t.Fatalf("expected KASIR role, got %q", payload.User.Role)
	}
	if payload.User.Password != "" {
		t.Fatalf("password leaked in auth payload")
	}
	if payload.Token == "" {
		t.Fatalf("expected a signed token")
	}
}

func TestRegisterValidation(t *testing.T) {
	auth, _ := newTestAuthManager(t)

	cases := []struct {
		name string
		req  domain.RegisterRequest
	}{
		{"missing fields", domain.RegisterRequest{Email: "a@b.c", Password: "secret1", ConfirmPassword: "secret1"}},
		{"confirm mismatch", domain.RegisterRequest{FullName: "A", Email: "a@b.c", Password: "secret1", ConfirmPassword: "secret2"}},
		{"short password", domain.RegisterRequest{FullName: "A", Email: "a@b.c", Password: "abc", ConfirmPassword: "abc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := auth.Register(context.Background(), tc.req); !errors.Is(err, store.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	auth, _ := newTestAuthManager(t)
	registerUser(t, auth, "dup@test.local")

	_, err := auth.Register(context.Background(), domain.RegisterRequest{
		FullName:        "Other Kasir",
		Email:           "DUP@test.local",
		Password:        "rahasia1",
		ConfirmPassword: "rahasia1",
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}
}

func TestLoginNormalizesEmail(t *testing.T) {
	auth, _ := newTestAuthManager(t)
	registerUser(t, auth, "case@test.local")

	payload, err := auth.Login(context.Background(), domain.LoginRequest{
		Email:    "  CASE@test.local ",
		Password: "rahasia1",
	})
	if err != nil {
		t.Fatalf("login with mixed-case email: %v", err)
	}
	if payload.User.Email != "case@test.local" {
		t.Fatalf("unexpected email %q", payload.User.Email)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	auth, _ := newTestAuthManager(t)
	registerUser(t, auth, "known@test.local")

	_, errUnknown := auth.Login(context.Background(), domain.LoginRequest{Email: "unknown@test.local", Password: "whatever"})
	_, errWrongPass := auth.Login(context.Background(), domain.LoginRequest{Email: "known@test.local", Password: "wrongpassword"})

	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrongPass, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", errUnknown, errWrongPass)
	}
	if errUnknown.Error() != errWrongPass.Error() {
		t.Fatalf("failure messages differ: %q vs %q", errUnknown.Error(), errWrongPass.Error())
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	auth, _ := newTestAuthManager(t)
	payload := registerUser(t, auth, "token@test.local")

	actor, err := auth.ParseToken(payload.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.ID != payload.User.ID {
		t.Fatalf("subject mismatch: %q vs %q", actor.ID, payload.User.ID)
	}
	if actor.Email != "token@test.local" || actor.Role != domain.RoleKasir {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	auth, repo := newTestAuthManager(t)
	payload := registerUser(t, auth, "secret@test.local")

	other := NewAuthManager("a-completely-different-secret", time.Hour, repo)
	if _, err := other.ParseToken(payload.Token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	repo := memory.New()
	auth := NewAuthManager("test-secret-key", time.Nanosecond, repo)
	payload := registerUser(t, auth, "expired@test.local")

	time.Sleep(5 * time.Millisecond)
	if _, err := auth.ParseToken(payload.Token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	auth, _ := newTestAuthManager(t)
	for _, tokenStr := range []string{"", "not-a-token", strings.Repeat("x", 200)} {
		if _, err := auth.ParseToken(tokenStr); err == nil {
			t.Fatalf("expected parse failure for %q", tokenStr)
		}
	}
}
