// Package auth verifies local admin accounts and issues the bearer tokens
// attached to dashboard API calls.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/zsprackett/flowcontrol/internal/db"
)

// ErrInvalidCredentials covers both an unknown user and a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

const DefaultTokenTTL = time.Hour

// Accounts is the subset of the local store auth needs.
type Accounts interface {
	GetAccountByUsername(username string) (*db.Account, error)
	CreateAccount(username, passwordHash string) (*db.Account, error)
	UpdateAccountPassword(id, passwordHash string) error
}

func HashPassword(password []byte) (string, error) {
	if len(password) == 0 {
		return "", errors.New("empty password")
	}
	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify checks username/password against the store.
func Verify(store Accounts, username, password string) (*db.Account, error) {
	acc, err := store.GetAccountByUsername(username)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// AddUser creates an account with a bcrypt hash of password.
func AddUser(store Accounts, username string, password []byte) (*db.Account, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return store.CreateAccount(username, hash)
}

// SetPassword replaces the password of an existing account.
func SetPassword(store Accounts, username string, password []byte) error {
	acc, err := store.GetAccountByUsername(username)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", username, err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return store.UpdateAccountPassword(acc.ID, hash)
}

// IssueAccessToken creates a signed HS256 JWT for username.
func IssueAccessToken(secret, username string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    "flowcontrol",
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateAccessToken parses and validates a token, returning its subject.
func ValidateAccessToken(secret, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// Login verifies credentials and returns a fresh access token.
func Login(store Accounts, secret, username, password string, ttl time.Duration) (string, error) {
	acc, err := Verify(store, username, password)
	if err != nil {
		return "", err
	}
	return IssueAccessToken(secret, acc.Username, ttl)
}
