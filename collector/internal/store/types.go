package store

// Source types: which discovery path produced an item.
const (
	SourceTimelineReply  = "timeline_reply"
	SourceThreadReply    = "thread_reply"
	SourceKeywordMention = "keyword_mention"
)

// Item is one observed post or reply.
//
// CreatedAt and CollectedAt are RFC 3339 UTC strings ("2006-01-02T15:04:05Z").
// Range queries compare them lexicographically, which is only correct because
// every write path normalizes to that one format. CreatedAt may be empty when
// the platform timestamp could not be parsed; such items match every range.
type Item struct {
	ID           string `json:"id"`
	AuthorName   string `json:"author_name"`
	AuthorHandle string `json:"author_handle"`
	Text         string `json:"text"`
	URL          string `json:"url"`
	SourceType   string `json:"source_type"`
	SourceDetail string `json:"source_detail"`
	ParentText   string `json:"parent_text"`
	ParentURL    string `json:"parent_url"`
	Likes        int    `json:"likes"`
	Retweets     int    `json:"retweets"`
	Replies      int    `json:"replies"`
	Category     string `json:"category"`
	CreatedAt    string `json:"created_at"`
	CollectedAt  string `json:"collected_at"`
}

// RunRecord is one collection run, for the history view.
type RunRecord struct {
	ID           string `json:"id"`
	StartedAt    int64  `json:"started_at"`
	FinishedAt   int64  `json:"finished_at,omitempty"`
	Since        string `json:"since"`
	Status       string `json:"status"` // running | ok | error
	NewItems     int    `json:"new_items"`
	Scanned      int    `json:"scanned"`
	Skipped      int    `json:"skipped"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Run statuses.
const (
	RunStatusRunning = "running"
	RunStatusOK      = "ok"
	RunStatusError   = "error"
)

// Stats holds aggregate counters over the whole store.
type Stats struct {
	Total           int `json:"total"`
	TimelineReplies int `json:"timeline_replies"`
	ThreadReplies   int `json:"thread_replies"`
	KeywordMentions int `json:"keyword_mentions"`
	FeatureRequests int `json:"feature_requests"`
	ProductFeedback int `json:"product_feedback"`
	GeneralFeedback int `json:"general_feedback"`
	Runs            int `json:"runs"`
}
