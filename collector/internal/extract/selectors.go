package extract

// x.com DOM selectors, isolated here because the upstream markup changes
// frequently. Update these when scraping breaks.
const (
	selTweetArticle = `article[data-testid="tweet"]`
	selTweetText    = `[data-testid="tweetText"]`
	selAuthorName   = `[data-testid="User-Name"] span`
	selTimestamp    = `time`
	selPermalink    = `a[href*="/status/"]`
)
