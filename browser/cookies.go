package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// CookieDomain is the domain session cookies are injected under.
const CookieDomain = ".x.com"

var (
	// ErrNoCookies means the cookie file does not exist yet.
	ErrNoCookies = errors.New("browser: no cookies found, run the login helper first")

	// ErrNoSession means cookies exist but lack the auth_token/ct0 pair
	// x.com requires for an authenticated session.
	ErrNoSession = errors.New("browser: cookies missing auth_token or ct0")
)

// Jar is the persisted session cookie set, keyed by cookie name.
type Jar map[string]string

// LoadJar reads a cookie file written by the login helper.
func LoadJar(path string) (Jar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCookies
		}
		return nil, fmt.Errorf("browser: read cookies: %w", err)
	}

	var jar Jar
	if err := json.Unmarshal(data, &jar); err != nil {
		return nil, fmt.Errorf("browser: parse cookies %s: %w", path, err)
	}
	return jar, nil
}

// Save writes the jar as indented JSON, creating parent directories.
// Cookies are credentials, so the file is not group or world readable.
func (j Jar) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("browser: create cookie dir: %w", err)
	}
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("browser: encode cookies: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("browser: write cookies: %w", err)
	}
	return nil
}

// HasSession reports whether the jar carries the authenticated-session pair.
func (j Jar) HasSession() bool {
	return j["auth_token"] != "" && j["ct0"] != ""
}

// AuthToken returns the session token, empty if absent.
func (j Jar) AuthToken() string { return j["auth_token"] }

// CSRFToken returns the ct0 cookie x.com expects mirrored in the
// x-csrf-token header on API calls. Empty if absent.
func (j Jar) CSRFToken() string { return j["ct0"] }

// Params converts the jar to cookie parameters scoped to the given domain.
func (j Jar) Params(domain string) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(j))
	for name, value := range j {
		params = append(params, &proto.NetworkCookieParam{
			Name:   name,
			Value:  value,
			Domain: domain,
			Path:   "/",
		})
	}
	return params
}

// ApplyCookies injects the jar into the browser under CookieDomain so every
// page opened afterwards carries the session.
func ApplyCookies(b *rod.Browser, jar Jar) error {
	if err := b.SetCookies(jar.Params(CookieDomain)); err != nil {
		return fmt.Errorf("browser: set cookies: %w", err)
	}
	return nil
}
