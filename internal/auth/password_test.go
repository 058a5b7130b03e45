package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	hash, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "secret123" {
		t.Fatal("hash equals plaintext")
	}
	if !h.Verify("secret123", hash) {
		t.Error("Verify: correct password rejected")
	}
	if h.Verify("wrong", hash) {
		t.Error("Verify: wrong password accepted")
	}
}

func TestRegisterRequestValidate(t *testing.T) {
	cases := []struct {
		name  string
		req   RegisterRequest
		field string
	}{
		{"ok", RegisterRequest{"bob", "Bob@Example.com", "secret"}, ""},
		{"no username", RegisterRequest{" ", "bob@example.com", "secret"}, "username"},
		{"no email", RegisterRequest{"bob", "", "secret"}, "email"},
		{"bad email", RegisterRequest{"bob", "not-an-email", "secret"}, "email"},
		{"short password", RegisterRequest{"bob", "bob@example.com", "12345"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				if tc.req.Email != "bob@example.com" {
					t.Errorf("Email not normalized: %q", tc.req.Email)
				}
				return
			}
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != tc.field {
				t.Errorf("Validate: got %v, want error on %s", err, tc.field)
			}
		})
	}
}
