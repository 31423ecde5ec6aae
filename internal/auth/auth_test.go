package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/zsprackett/flowcontrol/internal/auth"
	"github.com/zsprackett/flowcontrol/internal/db"
)

func openStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestLoginRoundTrip(t *testing.T) {
	store := openStore(t)
	if _, err := auth.AddUser(store, "nurse", []byte("s3cret")); err != nil {
		t.Fatal(err)
	}

	token, err := auth.Login(store, "signing-key", "nurse", "s3cret", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := auth.ValidateAccessToken("signing-key", token)
	if err != nil {
		t.Fatal(err)
	}
	if sub != "nurse" {
		t.Errorf("subject: got %q", sub)
	}
	if _, err := auth.ValidateAccessToken("other-key", token); err == nil {
		t.Error("token validated with the wrong secret")
	}
}

func TestVerifyRejects(t *testing.T) {
	store := openStore(t)
	auth.AddUser(store, "nurse", []byte("s3cret"))

	for _, tc := range []struct{ user, pw string }{{"nurse", "wrong"}, {"ghost", "s3cret"}} {
		if _, err := auth.Verify(store, tc.user, tc.pw); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Errorf("%s/%s: got %v want ErrInvalidCredentials", tc.user, tc.pw, err)
		}
	}
}

func TestSetPassword(t *testing.T) {
	store := openStore(t)
	auth.AddUser(store, "nurse", []byte("old"))

	if err := auth.SetPassword(store, "nurse", []byte("new")); err != nil {
		t.Fatal(err)
	}
	if _, err := auth.Verify(store, "nurse", "new"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if _, err := auth.Verify(store, "nurse", "old"); err == nil {
		t.Error("old password still accepted")
	}
	if err := auth.SetPassword(store, "ghost", []byte("x")); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("unknown user: got %v", err)
	}
}

func TestEmptyPasswordRejected(t *testing.T) {
	if _, err := auth.HashPassword(nil); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestNonPositiveTTLUsesDefault(t *testing.T) {
	token, err := auth.IssueAccessToken("k", "nurse", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.ValidateAccessToken("k", token); err != nil {
		t.Errorf("default ttl token rejected: %v", err)
	}
}
