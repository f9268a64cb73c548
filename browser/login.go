package browser

import (
	"context"
	"fmt"
	"time"
)

const (
	loginPollInterval = 3 * time.Second
	loginPollAttempts = 100 // 5 minutes total
	loginSettleDelay  = 2 * time.Second
)

// LoginResult is the outcome of an interactive login.
type LoginResult struct {
	Jar   Jar
	Found bool // auth_token and ct0 both captured
}

// Login opens x.com in the managed browser and waits for the user to sign in
// by hand, polling the cookie store until the auth_token/ct0 pair appears.
// Whatever cookies exist at the end are saved to cookiesPath even when the
// pair never showed up, since a partial set sometimes still works.
//
// The manager should be configured Headful with a small SlowMotion.
func Login(ctx context.Context, m *Manager, cookiesPath string) (*LoginResult, error) {
	b, err := m.Start(ctx)
	if err != nil {
		return nil, err
	}

	page, err := m.Open(ctx, "https://x.com")
	if err != nil {
		return nil, err
	}
	defer page.Close()

	log := m.cfg.Logger
	log.Info("browser: waiting for login", "timeout", loginPollInterval*loginPollAttempts)

	detected := false
	for attempt := 0; attempt < loginPollAttempts; attempt++ {
		if err := sleepCtx(ctx, loginPollInterval); err != nil {
			return nil, err
		}

		cookies, err := b.GetCookies()
		if err != nil {
			log.Debug("browser: cookie poll failed", "error", err)
			continue
		}

		names := make(map[string]bool, len(cookies))
		for _, c := range cookies {
			names[c.Name] = true
		}
		if names["auth_token"] && names["ct0"] {
			log.Info("browser: login detected")
			detected = true
			// Let the remaining session cookies land.
			if err := sleepCtx(ctx, loginSettleDelay); err != nil {
				return nil, err
			}
			break
		}

		if attempt%10 == 9 {
			log.Info("browser: still waiting for login",
				"elapsed", time.Duration(attempt+1)*loginPollInterval)
		}
	}
	if !detected {
		log.Warn("browser: timed out waiting for login")
	}

	cookies, err := b.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("browser: read cookies: %w", err)
	}

	jar := make(Jar, len(cookies))
	for _, c := range cookies {
		jar[c.Name] = c.Value
	}

	if len(jar) > 0 {
		if err := jar.Save(cookiesPath); err != nil {
			return nil, err
		}
	}

	return &LoginResult{Jar: jar, Found: jar.HasSession()}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
