package generator

import (
	"fmt"
	"strings"

	"github.com/clintrovert/ourstreet/pkg/types"
)

var categoryEmoji = map[types.Category]string{
	types.CategoryPothole:     "🚧",
	types.CategoryStreetlight: "💡",
	types.CategoryGarbage:     "🗑️",
	types.CategoryWaterLeak:   "💧",
	types.CategoryRoad:        "🛣️",
	types.CategorySanitation:  "🧹",
	types.CategoryDrainage:    "🌊",
	types.CategoryElectricity: "⚡",
	types.CategoryTraffic:     "🚦",
	types.CategoryOther:       "📢",
}

const defaultEmoji = "🚨"

// EmojiFor returns the lookup emoji for a category
func EmojiFor(c types.Category) string {
	if e, ok := categoryEmoji[c]; ok {
		return e
	}
	return defaultEmoji
}

// FallbackTweet builds post text without the model. The result is always
// within types.MaxPostLength and keeps the hashtag suffix intact when the
// suffix alone fits.
func FallbackTweet(issue *types.Issue) string {
	category := strings.ToUpper(strings.ReplaceAll(string(issue.Category), "_", " "))
	location := strings.TrimSpace(strings.SplitN(issue.Location, ",", 2)[0])

	head := fmt.Sprintf("%s %s Alert!\n\n", EmojiFor(issue.Category), category)
	if issue.Priority.IsUrgent() {
		head = "🚨 URGENT: " + head
	}
	tail := fmt.Sprintf("\n\n📍 %s\n\n", location)
	hashtags := "#CivicIssue #" + strings.ReplaceAll(category, " ", "")

	tweet := head + issue.Title + tail + hashtags
	overflow := Length(tweet) - types.MaxPostLength
	if overflow <= 0 {
		return tweet
	}

	// Shorten the title first; the budget is clamped since a long category
	// or location can leave no room for it at all.
	keep := Length(issue.Title) - overflow - Length(ellipsis)
	if keep < 0 {
		keep = 0
	}
	tweet = head + truncateRunes(issue.Title, keep) + ellipsis + tail + hashtags
	if Length(tweet) <= types.MaxPostLength {
		return tweet
	}

	room := types.MaxPostLength - Length(hashtags) - Length(ellipsis+"\n\n")
	if room < 0 {
		return ClampLength(hashtags)
	}
	body := strings.TrimRight(head+truncateRunes(issue.Title, keep)+tail, "\n")
	return truncateRunes(body, room) + ellipsis + "\n\n" + hashtags
}
