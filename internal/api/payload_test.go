package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clintrovert/ourstreet/internal/config"
	"github.com/clintrovert/ourstreet/pkg/types"
)

var now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func decode(t *testing.T, body string) IssuePayload {
	t.Helper()
	var p IssuePayload
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return p
}

func TestIssuePayload_Defaults(t *testing.T) {
	p := decode(t, `{"id":"i-1","title":"Leak","description":"Water everywhere","category":"water_leak"}`)

	issue, err := p.Issue(now)

	require.NoError(t, err)
	assert.Equal(t, &types.Issue{
		ID:          "i-1",
		Title:       "Leak",
		Description: "Water everywhere",
		Category:    types.CategoryWaterLeak,
		Location:    "Unknown location",
		Status:      types.StatusOpen,
		Priority:    types.PriorityMedium,
		CreatedAt:   now,
	}, issue)
	assert.Equal(t, types.PostOptions{IncludeImage: true, AutoApprove: false}, p.Options())
}

func TestIssuePayload_SnakeCaseAndOptions(t *testing.T) {
	p := decode(t, `{
		"id":"i-2","title":"Dark street","description":"All lights out","category":"streetlight",
		"location":"Oak Rd, North","photo_url":"https://cdn/x.png","priority":"critical",
		"created_at":"2025-05-30T08:00:00Z","includeImage":false,"autoApprove":true
	}`)

	issue, err := p.Issue(now)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x.png", issue.PhotoURL)
	assert.Equal(t, types.PriorityCritical, issue.Priority)
	assert.Equal(t, time.Date(2025, 5, 30, 8, 0, 0, 0, time.UTC), issue.CreatedAt)
	assert.Equal(t, types.PostOptions{IncludeImage: false, AutoApprove: true}, p.Options())
}

func TestIssuePayload_CamelCaseWins(t *testing.T) {
	p := decode(t, `{"id":"i","title":"t","description":"d","category":"road","photoUrl":"a","photo_url":"b"}`)

	issue, err := p.Issue(now)

	require.NoError(t, err)
	assert.Equal(t, "a", issue.PhotoURL)
}

func TestIssuePayload_MissingFields(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"title":"t","description":"d","category":"road"}`,
		`{"id":"i","description":"d","category":"road"}`,
		`{"id":"i","title":"t","category":"road"}`,
		`{"id":"i","title":"t","description":"d"}`,
	} {
		_, err := decode(t, body).Issue(now)
		assert.ErrorIs(t, err, ErrMissingFields, body)
	}
	assert.Equal(t, "Missing required fields: id, title, description, category", ErrMissingFields.Error())
}

func TestIssuePayload_AutoApproveOnlyWhenTrue(t *testing.T) {
	assert.False(t, decode(t, `{"autoApprove":false}`).Options().AutoApprove)
	assert.False(t, decode(t, `{}`).Options().AutoApprove)
	assert.True(t, decode(t, `{"includeImage":true}`).Options().IncludeImage)
}

func TestBatchPayload(t *testing.T) {
	var p BatchPayload
	require.NoError(t, json.Unmarshal([]byte(`{
		"issues":[
			{"id":"a","title":"t","description":"d","category":"road"},
			{"id":"b","title":"t","description":"d","category":"garbage"}
		],
		"delayMs":250,"autoApprove":true
	}`), &p))

	issues, opts, err := p.Batch(now)

	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "b", issues[1].ID)
	assert.Equal(t, types.BatchOptions{IncludeImages: true, DelayBetweenPosts: 250 * time.Millisecond, AutoApprove: true}, opts)
}

func TestBatchPayload_DefaultDelayAndInvalidIssue(t *testing.T) {
	p := BatchPayload{Issues: []IssuePayload{{ID: "a", Title: "t", Description: "d", Category: "road"}}}
	_, opts, err := p.Batch(now)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultBatchDelay, opts.DelayBetweenPosts)

	p.Issues = append(p.Issues, IssuePayload{ID: "b"})
	_, _, err = p.Batch(now)
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestNewPostResponse(t *testing.T) {
	ok := NewPostResponse(types.TweetResult{Success: true, PostID: "9", URL: "https://twitter.com/i/web/status/9"})
	assert.Equal(t, PostResponse{
		Success:  true,
		Message:  "Issue posted to social media successfully",
		TweetID:  "9",
		TweetURL: "https://twitter.com/i/web/status/9",
	}, ok)

	assert.Equal(t, "Not approved for posting", NewPostResponse(types.Failure("Not approved for posting")).Error)
	assert.Equal(t, "Failed to post to social media", NewPostResponse(types.TweetResult{}).Error)
}

func TestNewStatus(t *testing.T) {
	cfg := &config.Config{
		AI:      config.AIConfig{APIKey: "k"},
		Twitter: config.TwitterConfig{APIKey: "a", APISecret: "b", AccessToken: "c", AccessSecret: "d"},
		AutoPost: config.AutoPostConfig{
			Enabled:    true,
			Priorities: []types.Priority{types.PriorityHigh, types.PriorityCritical},
		},
	}

	status := NewStatus(cfg)
	assert.True(t, status.Ready)
	assert.Equal(t, []string{"high", "critical"}, status.PostPriorities)

	cfg.AI.APIKey = ""
	status = NewStatus(cfg)
	assert.True(t, status.TwitterConfigured)
	assert.False(t, status.AIConfigured)
	assert.False(t, status.Ready)
}
