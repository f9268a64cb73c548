package collector

// Keyword-signal sets for the feedback classifier. Tuned against observed
// traffic; the product-feedback set is deliberately the broadest since most
// replies talk about the app itself.

var featureRequestSignals = []string{
	"feature", "request", "add support", "please add", "should have",
	"would be nice", "wish it", "wish there", "missing", "needs to",
	"need to add", "can you add", "could you add", "want to see",
	"roadmap", "upcoming", "when will", "support for", "integrate",
	"integration", "add option", "option to", "ability to",
	"pls add", "plz add", "should add", "we need", "i need",
}

var productFeedbackSignals = []string{
	"bug", "buggy", "crash", "crashes", "crashing", "glitch", "laggy",
	"lag", "slow", "fast", "smooth", "broken", "error", "fix",
	"heating", "heats up", "heat up", "heatup", "hot", "overheat",
	"battery", "drain", "login", "log in", "sign in", "signin",
	"can't open", "cannot open", "not working", "doesn't work",
	"not loading", "loading", "stuck", "freeze", "froze",
	"ui", "interface", "dark mode", "font", "layout",
	"notification", "update", "version", "install", "uninstall",
	"accurate", "inaccurate", "wrong answer", "correct answer",
	"hallucin", "response", "speed", "latency", "timeout",
	"voice", "mic", "audio", "camera", "upload", "download",
	"app", "indus app", "the app", "this app", "your app",
	"tried it", "tried the", "using it", "used it", "tested",
	"experience", "usability", "performance", "quality",
	"underrated", "overrated", "impressed", "disappointing",
	"love the app", "love this app", "hate the app",
	"smooth experience", "bad experience", "good experience",
	"awesome app", "amazing app", "great app", "terrible app",
	"sucks", "fantastic", "solid app", "best app", "worst app",
	"playstore", "play store", "app store",
	"refinement", "polish", "improve",
}

var generalFeedbackSignals = []string{
	"proud", "congratulations", "congrats", "kudos", "bravo",
	"all the best", "best wishes", "good luck", "keep it up",
	"great initiative", "great work", "good work", "amazing work",
	"game changer", "game-changer", "revolutionary",
	"future", "potential", "promising", "exciting",
	"india", "bharat", "desi", "indigenous", "sovereign",
	"startup", "company", "team", "funding", "invest",
	"compete", "competition", "chatgpt", "grok", "gemini",
	"business", "market", "industry",
	"partnership", "partner", "collab",
}
