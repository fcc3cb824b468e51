package feed

// Where a rendered article list came from.
const (
	FromFeed     = "feed"
	FromFallback = "fallback"
)

// DefaultFallback is the static list shown when the feed yields nothing.
var DefaultFallback = []Item{
	{
		Title: "4 Reasons to Build (Only One Is Your Portfolio)",
		Date:  "December 11, 2025",
		Link:  "https://open.substack.com/pub/byshay/p/4-reasons-to-build-only-one-is-your?r=5bh8rr&utm_campaign=post&utm_medium=web",
	},
	{
		Title: "Do We Always Have to Pay for Our Knowledge Gap?",
		Date:  "December 8, 2025",
		Link:  "https://byshay.substack.com/p/do-we-always-have-to-pay-for-our",
	},
	{
		Title: "The Control Paradox: Why Vibe Coding Feels So Different",
		Date:  "November 20, 2025",
		Link:  "https://byshay.substack.com/p/the-control-paradox-why-vibe-coding",
	},
	{
		Title: "We Should Build AI That Isn't Always Helpful",
		Date:  "November 5, 2025",
		Link:  "https://open.substack.com/pub/byshay/p/we-should-build-ai-that-isnt-always?utm_campaign=post-expanded-share&utm_medium=web",
	},
}

// WithFallback picks live when it has entries, otherwise fallback, and says
// which one it picked.
func WithFallback(live, fallback []Item) ([]Item, string) {
	if len(live) > 0 {
		return live, FromFeed
	}
	if fallback == nil {
		fallback = []Item{}
	}
	return fallback, FromFallback
}
