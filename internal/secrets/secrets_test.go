package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dohr-michael/taskflow/internal/config"
)

func TestOpenKeyring_Create(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".age-key")

	if _, err := OpenKeyring(path, false); !errors.Is(err, ErrNoKey) {
		t.Fatalf("missing key: err = %v, want ErrNoKey", err)
	}

	k1, err := OpenKeyring(path, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %o, want 600", info.Mode().Perm())
	}

	k2, err := OpenKeyring(path, true)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if k1.Recipient() != k2.Recipient() {
		t.Error("reopening with create must not replace the key")
	}
	if !strings.HasPrefix(k1.Recipient(), "age1") {
		t.Errorf("recipient = %q", k1.Recipient())
	}
}

func TestSealOpen(t *testing.T) {
	k, err := OpenKeyring(filepath.Join(t.TempDir(), ".age-key"), true)
	if err != nil {
		t.Fatal(err)
	}

	sealed, err := k.Seal("s3cret value")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !IsSealed(sealed) {
		t.Fatalf("sealed value %q not recognized", sealed)
	}
	if strings.Contains(sealed, "s3cret") {
		t.Error("plaintext leaked into sealed value")
	}

	got, err := k.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "s3cret value" {
		t.Errorf("Open = %q", got)
	}

	if got, _ := k.Open("plain"); got != "plain" {
		t.Errorf("plain passthrough = %q", got)
	}
}

func TestOpen_WrongKey(t *testing.T) {
	dir := t.TempDir()
	a, _ := OpenKeyring(filepath.Join(dir, "a"), true)
	b, _ := OpenKeyring(filepath.Join(dir, "b"), true)

	sealed, err := a.Seal("x")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Open(sealed); err == nil {
		t.Error("opening with another key should fail")
	}
	if _, err := a.Open("ENC[age:!!notbase64]"); err == nil {
		t.Error("corrupt value should fail")
	}
}

func TestReveal(t *testing.T) {
	t.Setenv("TASKFLOW_PATH", t.TempDir())

	if got, err := Reveal("plain", KeyPath()); err != nil || got != "plain" {
		t.Errorf("Reveal(plain) = %q, %v", got, err)
	}
	if _, err := Reveal("ENC[age:AAAA]", KeyPath()); !errors.Is(err, ErrNoKey) {
		t.Errorf("Reveal without key: err = %v, want ErrNoKey", err)
	}

	k, err := OpenKeyring(KeyPath(), true)
	if err != nil {
		t.Fatal(err)
	}
	sealed, _ := k.Seal("jwt")
	if got, err := Reveal(sealed, KeyPath()); err != nil || got != "jwt" {
		t.Errorf("Reveal(sealed) = %q, %v", got, err)
	}
}

func TestSetEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", ".env")

	if err := SetEntry(path, "JWT_SECRET", "first"); err != nil {
		t.Fatalf("SetEntry new file: %v", err)
	}
	if err := os.WriteFile(path, []byte("# keep me\nJWT_SECRET=first\nOTHER=1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := SetEntry(path, "JWT_SECRET", "second"); err != nil {
		t.Fatal(err)
	}
	if err := SetEntry(path, "NEW", "has space"); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	want := "# keep me\nJWT_SECRET=second\nOTHER=1\nNEW=\"has space\"\n"
	if string(data) != want {
		t.Errorf("file =\n%s\nwant\n%s", data, want)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %o", info.Mode().Perm())
	}
}

func TestSetEntry_RoundTripsThroughLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	k, _ := OpenKeyring(filepath.Join(t.TempDir(), ".age-key"), true)
	sealed, _ := k.Seal("abc")

	if err := SetEntry(path, "TF_SEALED_TEST", sealed); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TF_SEALED_TEST", "")
	os.Unsetenv("TF_SEALED_TEST")
	if err := config.LoadDotenv(path); err != nil {
		t.Fatal(err)
	}
	got, err := k.Open(os.Getenv("TF_SEALED_TEST"))
	if err != nil || got != "abc" {
		t.Errorf("round trip = %q, %v", got, err)
	}
}
