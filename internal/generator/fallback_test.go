package generator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clintrovert/ourstreet/pkg/types"
)

func TestFallbackTweet_Format(t *testing.T) {
	issue := potholeIssue()
	issue.Priority = types.PriorityLow

	got := FallbackTweet(issue)
	want := "🚧 POTHOLE Alert!\n\nDeep pothole on Elm St\n\n📍 Elm St\n\n#CivicIssue #POTHOLE"
	assert.Equal(t, want, got)
}

func TestFallbackTweet_UrgentPrefix(t *testing.T) {
	for _, p := range []types.Priority{types.PriorityHigh, types.PriorityCritical} {
		issue := potholeIssue()
		issue.Priority = p
		assert.True(t, strings.HasPrefix(FallbackTweet(issue), "🚨 URGENT: 🚧 POTHOLE Alert!"), p)
	}
	issue := potholeIssue()
	issue.Priority = types.PriorityMedium
	assert.False(t, strings.HasPrefix(FallbackTweet(issue), "🚨 URGENT"))
}

func TestFallbackTweet_CategoryEmojiAndHashtag(t *testing.T) {
	tests := []struct {
		category types.Category
		emoji    string
		hashtag  string
	}{
		{types.CategoryPothole, "🚧", "#POTHOLE"},
		{types.CategoryStreetlight, "💡", "#STREETLIGHT"},
		{types.CategoryGarbage, "🗑️", "#GARBAGE"},
		{types.CategoryWaterLeak, "💧", "#WATERLEAK"},
		{types.CategoryRoad, "🛣️", "#ROAD"},
		{types.CategorySanitation, "🧹", "#SANITATION"},
		{types.CategoryDrainage, "🌊", "#DRAINAGE"},
		{types.CategoryElectricity, "⚡", "#ELECTRICITY"},
		{types.CategoryTraffic, "🚦", "#TRAFFIC"},
		{types.CategoryOther, "📢", "#OTHER"},
		{types.Category("graffiti"), "🚨", "#GRAFFITI"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			issue := potholeIssue()
			issue.Priority = types.PriorityLow
			issue.Category = tt.category

			got := FallbackTweet(issue)
			assert.True(t, strings.HasPrefix(got, tt.emoji+" "), got)
			assert.True(t, strings.HasSuffix(got, "#CivicIssue "+tt.hashtag), got)
		})
	}
	assert.Contains(t, FallbackTweet(&types.Issue{Category: types.CategoryWaterLeak}), "WATER LEAK Alert!")
}

func TestFallbackTweet_LongTitleKeepsHashtags(t *testing.T) {
	issue := potholeIssue()
	issue.Title = strings.Repeat("very long title ", 40)

	got := FallbackTweet(issue)
	assert.LessOrEqual(t, Length(got), types.MaxPostLength)
	assert.True(t, strings.HasSuffix(got, "#CivicIssue #POTHOLE"))
	assert.Contains(t, got, "...\n\n📍 Elm St")
}

func TestFallbackTweet_LongLocationAndCategory(t *testing.T) {
	issue := potholeIssue()
	issue.Location = strings.Repeat("Somewhere", 40)
	issue.Category = types.Category(strings.Repeat("x_", 20))

	got := FallbackTweet(issue)
	assert.LessOrEqual(t, Length(got), types.MaxPostLength)
	assert.True(t, strings.HasSuffix(got, "#CivicIssue #"+strings.Repeat("X", 20)), got)
}

func TestFallbackTweet_HashtagsAloneTooLong(t *testing.T) {
	issue := potholeIssue()
	issue.Category = types.Category(strings.Repeat("c", 400))

	got := FallbackTweet(issue)
	assert.Equal(t, types.MaxPostLength, Length(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestFallbackTweet_NeverExceedsLimit(t *testing.T) {
	for titleLen := 0; titleLen <= 400; titleLen += 17 {
		for locLen := 0; locLen <= 300; locLen += 31 {
			issue := potholeIssue()
			issue.Title = strings.Repeat("t", titleLen)
			issue.Location = strings.Repeat("🏙", locLen)

			got := FallbackTweet(issue)
			assert.LessOrEqual(t, Length(got), types.MaxPostLength, fmt.Sprintf("title=%d loc=%d", titleLen, locLen))
		}
	}
}

func TestClampLength(t *testing.T) {
	assert.Equal(t, "short", ClampLength("short"))

	exact := strings.Repeat("é", types.MaxPostLength)
	assert.Equal(t, exact, ClampLength(exact))

	over := strings.Repeat("é", types.MaxPostLength+1)
	got := ClampLength(over)
	assert.Equal(t, types.MaxPostLength, Length(got))
	assert.Equal(t, strings.Repeat("é", 277)+"...", got)
}

func TestCleanTweet(t *testing.T) {
	assert.Equal(t, "hello", cleanTweet(`  "hello"  `))
	assert.Equal(t, "hello", cleanTweet(`'hello'`))
	assert.Equal(t, "hello", cleanTweet("“hello”"))
	assert.Equal(t, `say "hi" now`, cleanTweet(`say "hi" now`))
	assert.Equal(t, "", cleanTweet(`""`))
}
