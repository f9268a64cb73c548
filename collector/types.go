// Package collector harvests feedback about a product from a social
// platform: replies to a monitored account's posts, replies to curated
// threads, and keyword search mentions.
//
// Each run discovers the account's recent posts over the authenticated API,
// scrapes replies through a real browser session, filters search results for
// relevance, classifies every item into a feedback category, and appends the
// new ones to a local SQLite store. Results surface through the dashboard,
// CSV/email exports, and MCP tools.
package collector

import "github.com/induslabs/pulse/collector/internal/store"

// Re-export store types for public API.
type (
	Item      = store.Item
	RunRecord = store.RunRecord
	Stats     = store.Stats
)

// Source types an Item can carry.
const (
	SourceTimelineReply  = store.SourceTimelineReply
	SourceThreadReply    = store.SourceThreadReply
	SourceKeywordMention = store.SourceKeywordMention
)

// Run statuses recorded in the runs table.
const (
	RunStatusRunning = store.RunStatusRunning
	RunStatusOK      = store.RunStatusOK
	RunStatusError   = store.RunStatusError
)
