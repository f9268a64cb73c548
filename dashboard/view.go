package dashboard

import (
	"strings"

	"github.com/induslabs/pulse/collector"
)

// Metrics is the counts row above the tabs.
type Metrics struct {
	Total    int
	Timeline int
	Threads  int
	Mentions int
}

// Group is one conversation or search query and its items, rendered as a
// header card with replies beneath.
type Group struct {
	Title   string
	Preview string
	Author  string
	URL     string
	Items   []*collector.Item
}

// Tabs is the per-source split of the selected window.
type Tabs struct {
	Timeline []Group
	Threads  []Group
	Mentions []Group
}

// buildTabs splits items by source type and groups each tab: replies by
// their parent post, mentions by their search query. Group order follows
// first appearance, item order is preserved.
func buildTabs(items []*collector.Item, handle string) (Metrics, Tabs) {
	var timeline, threads, mentions []*collector.Item
	for _, it := range items {
		switch it.SourceType {
		case collector.SourceTimelineReply:
			timeline = append(timeline, it)
		case collector.SourceThreadReply:
			threads = append(threads, it)
		case collector.SourceKeywordMention:
			mentions = append(mentions, it)
		}
	}

	m := Metrics{
		Total:    len(items),
		Timeline: len(timeline),
		Threads:  len(threads),
		Mentions: len(mentions),
	}
	t := Tabs{
		Timeline: groupByParent(timeline, handle),
		Threads:  groupByParent(threads, handle),
		Mentions: groupByQuery(mentions),
	}
	return m, t
}

func groupByParent(items []*collector.Item, handle string) []Group {
	var order []string
	byKey := make(map[string]*Group)

	for _, it := range items {
		key := it.ParentText
		if key == "" {
			key = it.SourceDetail
		}
		if key == "" {
			key = "Unknown thread"
		}
		g, ok := byKey[key]
		if !ok {
			author := "@" + handle
			if i := strings.IndexByte(it.SourceDetail, '/'); i > 0 {
				author = it.SourceDetail[:i]
			}
			g = &Group{
				Title:   key,
				Preview: clip(key, 140),
				Author:  author,
				URL:     it.ParentURL,
			}
			byKey[key] = g
			order = append(order, key)
		}
		g.Items = append(g.Items, it)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	return groups
}

func groupByQuery(items []*collector.Item) []Group {
	var order []string
	byKey := make(map[string]*Group)

	for _, it := range items {
		key := it.SourceDetail
		if key == "" {
			key = it.ParentText
		}
		if key == "" {
			key = "search"
		}
		g, ok := byKey[key]
		if !ok {
			g = &Group{Title: key, Preview: clip(key, 140)}
			byKey[key] = g
			order = append(order, key)
		}
		g.Items = append(g.Items, it)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	return groups
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// itemTime shortens a stored RFC 3339 timestamp for display: date and
// minutes, no seconds or zone.
func itemTime(createdAt string) string {
	if len(createdAt) < 16 {
		return createdAt
	}
	return strings.Replace(createdAt[:16], "T", " ", 1)
}
