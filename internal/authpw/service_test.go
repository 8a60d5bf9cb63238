package authpw

import (
	"context"
	"database/sql"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"reqtrack/api/internal/store"
)

type fakeUserStore struct {
	byEmail    map[string]store.User
	byUsername map[string]store.User
	created    []store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail:    make(map[string]store.User),
		byUsername: make(map[string]store.User),
	}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	if user, ok := f.byEmail[email]; ok {
		return user, nil
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeUserStore) GetUserByUsername(_ context.Context, username string) (store.User, error) {
	if user, ok := f.byUsername[username]; ok {
		return user, nil
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) (store.User, error) {
	user.ID = int64(len(f.created) + 1)
	user.IsActive = true
	f.created = append(f.created, user)
	f.byEmail[user.Email] = user
	f.byUsername[user.Username] = user
	return user, nil
}

func TestRegisterSplitsFullName(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	user, err := svc.Register(context.Background(), RegisterRequest{
		Username: "bob",
		Name:     "  Bob van der Berg ",
		Email:    "bob@example.com",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.FirstName != "Bob" {
		t.Fatalf("expected first name Bob, got %q", user.FirstName)
	}
	if user.LastName != "van der Berg" {
		t.Fatalf("expected last name, got %q", user.LastName)
	}
	if user.PasswordHash == "hunter2hunter2" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter2hunter2")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "short",
	})
	if err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)
	req := RegisterRequest{Username: "bob", Name: "Bob", Email: "bob@example.com", Password: "hunter2hunter2"}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	req.Username = "bob2"
	if _, err := svc.Register(context.Background(), req); err != ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignInVerifiesPassword(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)
	if _, err := svc.Register(context.Background(), RegisterRequest{
		Username: "bob", Name: "Bob", Email: "bob@example.com", Password: "hunter2hunter2",
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := svc.SignIn(context.Background(), "bob@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if _, err := svc.SignIn(context.Background(), "bob@example.com", "wrong-password"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignIn(context.Background(), "nobody@example.com", "hunter2hunter2"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}
