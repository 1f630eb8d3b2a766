package types

import "time"

// MaxPostLength is the platform's hard character limit for a single post
const MaxPostLength = 280

// TweetContent is a single post request
type TweetContent struct {
	Text      string
	MediaIDs  []string
	ReplyToID string
}

// TweetResult is the outcome of every posting operation
type TweetResult struct {
	Success bool   `json:"success"`
	PostID  string `json:"postId,omitempty"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failure builds a failed TweetResult
func Failure(msg string) TweetResult {
	return TweetResult{Success: false, Error: msg}
}

// PostOptions controls a single-issue posting run
type PostOptions struct {
	IncludeImage bool `json:"includeImage"`
	AutoApprove  bool `json:"autoApprove"`
}

// DefaultBatchDelay is the pause between posts in a batch
const DefaultBatchDelay = 5 * time.Second

// BatchOptions controls a multi-issue posting run
type BatchOptions struct {
	IncludeImages     bool          `json:"includeImages"`
	DelayBetweenPosts time.Duration `json:"delayBetweenPosts"`
	AutoApprove       bool          `json:"autoApprove"`
}

// BatchResult tallies a multi-issue posting run. Results are in input order.
type BatchResult struct {
	Success int           `json:"success"`
	Failed  int           `json:"failed"`
	Results []TweetResult `json:"results"`
}

// Record appends a result and updates the tally
func (b *BatchResult) Record(r TweetResult) {
	b.Results = append(b.Results, r)
	if r.Success {
		b.Success++
	} else {
		b.Failed++
	}
}

// DefaultBatchOptions returns the batch settings used when a caller gives none
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{IncludeImages: true, DelayBetweenPosts: DefaultBatchDelay}
}
