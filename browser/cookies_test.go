package browser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestJar_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "cookies.json")

	jar := Jar{
		"auth_token": "abc123def456",
		"ct0":        "csrf789",
		"guest_id":   "v1:170000",
	}
	if err := jar.Save(path); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("cookie file mode: got %o, want 600", perm)
	}

	loaded, err := LoadJar(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 3 {
		t.Fatalf("loaded cookies: got %d, want 3", len(loaded))
	}
	if loaded["auth_token"] != "abc123def456" {
		t.Fatalf("auth_token: got %q", loaded["auth_token"])
	}
}

func TestLoadJar_Missing(t *testing.T) {
	_, err := LoadJar(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrNoCookies) {
		t.Fatalf("got %v, want ErrNoCookies", err)
	}
}

func TestLoadJar_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadJar(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestJar_HasSession(t *testing.T) {
	tests := []struct {
		name string
		jar  Jar
		want bool
	}{
		{"both", Jar{"auth_token": "a", "ct0": "c"}, true},
		{"missing ct0", Jar{"auth_token": "a"}, false},
		{"missing auth", Jar{"ct0": "c"}, false},
		{"empty values", Jar{"auth_token": "", "ct0": ""}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.jar.HasSession(); got != tt.want {
				t.Fatalf("HasSession: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJar_Params(t *testing.T) {
	jar := Jar{"auth_token": "a", "ct0": "c"}
	params := jar.Params(CookieDomain)
	if len(params) != 2 {
		t.Fatalf("params: got %d, want 2", len(params))
	}
	for _, p := range params {
		if p.Domain != ".x.com" {
			t.Fatalf("domain: got %q", p.Domain)
		}
		if p.Path != "/" {
			t.Fatalf("path: got %q", p.Path)
		}
		if jar[p.Name] != p.Value {
			t.Fatalf("value mismatch for %s", p.Name)
		}
	}
}
