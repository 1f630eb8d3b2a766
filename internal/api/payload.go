package api

import (
	"errors"
	"time"

	"github.com/clintrovert/ourstreet/pkg/types"
)

// ErrMissingFields is returned when a post request lacks an issue's identifying fields
var ErrMissingFields = errors.New("Missing required fields: id, title, description, category")

const unknownLocation = "Unknown location"

// IssuePayload is the body of a post request. Both camelCase and
// snake_case spellings are accepted for the fields the issue store emits.
type IssuePayload struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Location     string `json:"location"`
	PhotoURL     string `json:"photoUrl"`
	PhotoURLAlt  string `json:"photo_url"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	CreatedAt    string `json:"createdAt"`
	CreatedAtAlt string `json:"created_at"`
	IncludeImage *bool  `json:"includeImage"`
	AutoApprove  *bool  `json:"autoApprove"`
}

// Issue validates the payload and fills in defaults
func (p IssuePayload) Issue(now time.Time) (*types.Issue, error) {
	if p.ID == "" || p.Title == "" || p.Description == "" || p.Category == "" {
		return nil, ErrMissingFields
	}

	issue := &types.Issue{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Category:    types.Category(p.Category),
		Location:    firstNonEmpty(p.Location, unknownLocation),
		PhotoURL:    firstNonEmpty(p.PhotoURL, p.PhotoURLAlt),
		Status:      types.Status(firstNonEmpty(p.Status, string(types.StatusOpen))),
		Priority:    types.Priority(firstNonEmpty(p.Priority, string(types.PriorityMedium))),
		CreatedAt:   now,
	}

	if raw := firstNonEmpty(p.CreatedAt, p.CreatedAtAlt); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			issue.CreatedAt = t
		}
	}

	return issue, nil
}

// Options returns the posting options. Images are included unless
// explicitly disabled; moderation is skipped only when explicitly asked.
func (p IssuePayload) Options() types.PostOptions {
	return types.PostOptions{
		IncludeImage: p.IncludeImage == nil || *p.IncludeImage,
		AutoApprove:  p.AutoApprove != nil && *p.AutoApprove,
	}
}

// BatchPayload is the body of a batch post request
type BatchPayload struct {
	Issues        []IssuePayload `json:"issues"`
	IncludeImages *bool          `json:"includeImages"`
	AutoApprove   bool           `json:"autoApprove"`
	DelayMs       *int64         `json:"delayMs"`
	Durable       bool           `json:"durable"`
}

// Batch validates every issue and returns the batch options
func (p BatchPayload) Batch(now time.Time) ([]*types.Issue, types.BatchOptions, error) {
	issues := make([]*types.Issue, 0, len(p.Issues))
	for _, ip := range p.Issues {
		issue, err := ip.Issue(now)
		if err != nil {
			return nil, types.BatchOptions{}, err
		}
		issues = append(issues, issue)
	}

	opts := types.DefaultBatchOptions()
	opts.AutoApprove = p.AutoApprove
	if p.IncludeImages != nil {
		opts.IncludeImages = *p.IncludeImages
	}
	if p.DelayMs != nil && *p.DelayMs >= 0 {
		opts.DelayBetweenPosts = time.Duration(*p.DelayMs) * time.Millisecond
	}

	return issues, opts, nil
}

// PostResponse is returned by the single-issue post endpoints
type PostResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	TweetID  string `json:"tweetId,omitempty"`
	TweetURL string `json:"tweetUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewPostResponse maps a TweetResult onto the API response
func NewPostResponse(r types.TweetResult) PostResponse {
	if !r.Success {
		msg := r.Error
		if msg == "" {
			msg = "Failed to post to social media"
		}
		return PostResponse{Success: false, Error: msg}
	}
	return PostResponse{
		Success:  true,
		Message:  "Issue posted to social media successfully",
		TweetID:  r.PostID,
		TweetURL: r.URL,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
