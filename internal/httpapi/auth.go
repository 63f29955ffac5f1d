package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

// ErrInvalidCredentials is returned for unknown emails and wrong passwords
// alike so login responses never reveal whether an account exists.
var ErrInvalidCredentials = errors.New("email or password incorrect")

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	users    UserStore
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

type posClaims struct {
	jwtlib.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, users UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}

	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.AuthPayload, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || strings.TrimSpace(req.Password) == "" {
		return domain.AuthPayload{}, fmt.Errorf("%w: email and password are required", store.ErrInvalidInput)
	}

	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AuthPayload{}, ErrInvalidCredentials
		}
		return domain.AuthPayload{}, err
	}
	if !verifyPassword(user.Password, req.Password) {
		return domain.AuthPayload{}, ErrInvalidCredentials
	}

	token, err := a.sign(*user)
	if err != nil {
		return domain.AuthPayload{}, err
	}

	sanitized := *user
	sanitized.Password = ""
	return domain.AuthPayload{User: sanitized, Token: token}, nil
}

// Register creates a KASIR account. The role is never taken from the payload.
func (a *AuthManager) Register(ctx context.Context, req domain.RegisterRequest) (domain.AuthPayload, error) {
	fullName := strings.TrimSpace(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if fullName == "" || email == "" || req.Password == "" || req.ConfirmPassword == "" {
		return domain.AuthPayload{}, fmt.Errorf("%w: all fields are required", store.ErrInvalidInput)
	}
	if req.Password != req.ConfirmPassword {
		return domain.AuthPayload{}, fmt.Errorf("%w: password confirmation does not match", store.ErrInvalidInput)
	}
	if len(req.Password) < 6 {
		return domain.AuthPayload{}, fmt.Errorf("%w: password must be at least 6 characters", store.ErrInvalidInput)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.AuthPayload{}, err
	}

	created, err := a.users.CreateUser(ctx, domain.User{
		FullName: fullName,
		Email:    email,
		Password: hash,
		Role:     domain.RoleKasir,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.AuthPayload{}, fmt.Errorf("%w: email already registered", store.ErrConflict)
		}
		return domain.AuthPayload{}, err
	}

	token, err := a.sign(*created)
	if err != nil {
		return domain.AuthPayload{}, err
	}

	sanitized := *created
	sanitized.Password = ""
	return domain.AuthPayload{User: sanitized, Token: token}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{ID: sub, Email: claims.Email, Role: claims.Role}, nil
}

func (a *AuthManager) sign(user domain.User) (string, error) {
	now := time.Now().UTC()
	claims := posClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(a.tokenTTL)),
			Issuer:    "kasirpos",
		},
		Email: user.Email,
		Role:  user.Role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
