package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// NewPage creates a stealth page with the configured user agent and viewport
// applied. Resource blocking is set up when configured.
func (m *Manager) NewPage(ctx context.Context) (*rod.Page, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      m.cfg.UserAgent,
		AcceptLanguage: "en-US",
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: set user agent: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.ViewportWidth,
		Height:            m.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: set viewport: %w", err)
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		m.applyResourceBlocking(page)
	}

	return page, nil
}

// Open creates a stealth page and navigates it to the URL. Navigation gets a
// 30 second ceiling; a load timeout is only a warning because x.com keeps
// long-polling connections open well after the content is usable.
func (m *Manager) Open(ctx context.Context, pageURL string) (*rod.Page, error) {
	page, err := m.NewPage(ctx)
	if err != nil {
		return nil, err
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return page, nil
}

// applyResourceBlocking sets up request interception to drop the configured
// resource types (images, fonts, media) before they download.
func (m *Manager) applyResourceBlocking(page *rod.Page) {
	blockSet := make(map[string]bool, len(m.cfg.ResourceBlocking))
	for _, t := range m.cfg.ResourceBlocking {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		if shouldBlock(blockSet, string(ctx.Request.Type())) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
}

func shouldBlock(blockSet map[string]bool, resType string) bool {
	lower := strings.ToLower(resType)
	switch lower {
	case "image":
		return blockSet["images"]
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	case "stylesheet":
		return blockSet["stylesheets"]
	}
	return blockSet[lower]
}
