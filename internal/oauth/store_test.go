package oauth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStore_SaveLoadClear(t *testing.T) {
	dir := t.TempDir()
	s := &Store{Path: filepath.Join(dir, "nested", "auth.json")}

	tok, err := s.Load()
	if err != nil || tok != nil {
		t.Fatalf("Load() on empty store = %v, %v; want nil, nil", tok, err)
	}

	if err := s.Save(&Token{Key: "access", Secret: "secret"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(s.Path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
	dirInfo, err := os.Stat(filepath.Dir(s.Path))
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0o700 {
		t.Errorf("dir mode = %o, want 700", perm)
	}

	data, _ := os.ReadFile(s.Path)
	if string(data) != `{"accessToken":"access","accessTokenSecret":"secret"}` {
		t.Errorf("file content = %s", data)
	}

	tok, err = s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tok.Key != "access" || tok.Secret != "secret" {
		t.Errorf("Load() = %+v", tok)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}
	if tok, _ := s.Load(); tok != nil {
		t.Errorf("Load() after Clear = %+v, want nil", tok)
	}
}

func TestStore_RejectsIncomplete(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "auth.json")}
	if err := s.Save(&Token{Key: "only-key"}); err == nil {
		t.Error("Save() of incomplete token should fail")
	}
	if _, err := os.Stat(s.Path); !os.IsNotExist(err) {
		t.Error("incomplete token must not be written")
	}

	if err := os.WriteFile(s.Path, []byte(`{"accessToken":"a"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); err == nil {
		t.Error("Load() of incomplete file should fail")
	}
}

func TestDefaultStorePath(t *testing.T) {
	t.Setenv("EVERGIT_HOME", "/tmp/evergit-home")
	got, err := DefaultStorePath()
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/evergit-home/auth.json" {
		t.Errorf("DefaultStorePath() = %q", got)
	}
}
