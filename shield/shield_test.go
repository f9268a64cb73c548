package shield

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(map[string]RateLimitConfig{
		"POST /login": {MaxRequests: 2, WindowSeconds: 60},
	})

	if !rl.allow("1.2.3.4", "POST /login") {
		t.Fatal("first request should pass")
	}
	if !rl.allow("1.2.3.4", "POST /login") {
		t.Fatal("second request should pass")
	}
	if rl.allow("1.2.3.4", "POST /login") {
		t.Fatal("third request should be blocked")
	}
	// Different IP has its own bucket.
	if !rl.allow("5.6.7.8", "POST /login") {
		t.Fatal("other IP should pass")
	}
	// Unlisted endpoint is never limited.
	for i := 0; i < 10; i++ {
		if !rl.allow("1.2.3.4", "GET /") {
			t.Fatal("unlisted endpoint should never be limited")
		}
	}
}

func TestRateLimiter_Middleware429(t *testing.T) {
	rl := NewRateLimiter(map[string]RateLimitConfig{
		"POST /api/collect": {MaxRequests: 1, WindowSeconds: 60},
	})
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/collect", nil)
	req.RemoteAddr = "9.9.9.9:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: got %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", rec.Code)
	}
}

func TestRateLimiter_ExcludedPrefix(t *testing.T) {
	rl := NewRateLimiter(map[string]RateLimitConfig{
		"GET /static/app.css": {MaxRequests: 1, WindowSeconds: 60},
	}, "/static/")
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/static/app.css", nil)
		req.RemoteAddr = "9.9.9.9:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("excluded path blocked on attempt %d", i)
		}
	}
}

func TestFlash_Roundtrip(t *testing.T) {
	var got *FlashMessage
	h := Flash(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetFlash(r.Context())
	}))

	rec := httptest.NewRecorder()
	SetFlash(rec, "success", "saved")
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("flash not propagated")
	}
	if got.Type != "success" || got.Message != "saved" {
		t.Fatalf("flash = %+v", got)
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		xff        string
		want       string
	}{
		{"1.2.3.4:5678", "", "1.2.3.4"},
		{"1.2.3.4:5678", "9.9.9.9", "9.9.9.9"},
		{"1.2.3.4:5678", "9.9.9.9, 8.8.8.8", "9.9.9.9"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if tt.xff != "" {
			req.Header.Set("X-Forwarded-For", tt.xff)
		}
		if got := ExtractIP(req); got != tt.want {
			t.Errorf("ExtractIP(%q, xff=%q) = %q, want %q", tt.remoteAddr, tt.xff, got, tt.want)
		}
	}
}
