package generator

import (
	"context"
	"errors"

	"github.com/clintrovert/ourstreet/pkg/types"
)

var (
	// ErrMissingAPIKey is returned when the model provider key is not configured
	ErrMissingAPIKey = errors.New("AI API key not configured")

	// ErrNilIssue is returned when there is nothing to generate from
	ErrNilIssue = errors.New("issue is nil")
)

// VerdictSource says who produced a moderation verdict
type VerdictSource string

const (
	// SourceModel means the model answered and the answer was parsed
	SourceModel VerdictSource = "model"
	// SourceFailOpen means the model was unavailable and the issue was approved anyway
	SourceFailOpen VerdictSource = "fail_open"
)

// Verdict is the outcome of content moderation
type Verdict struct {
	ShouldPost bool
	Reason     string
	Source     VerdictSource
}

// DraftSource says which path produced post text
type DraftSource string

const (
	SourceAI       DraftSource = "ai"
	SourceTemplate DraftSource = "template"
)

// Draft is generated post text, always within types.MaxPostLength
type Draft struct {
	Text   string
	Source DraftSource
}

// ContentGenerator moderates issues and writes post text for them
type ContentGenerator interface {
	// ModerateContent never fails: an unavailable model approves the issue.
	ModerateContent(ctx context.Context, issue *types.Issue) Verdict
	// GenerateTweet falls back to a template when the model is unavailable.
	GenerateTweet(ctx context.Context, issue *types.Issue) (Draft, error)
}

// Unavailable stands in for a generator that could not be constructed.
// Moderation fails open and generation reports err.
type Unavailable struct {
	Err error
}

// ModerateContent implements ContentGenerator
func (u Unavailable) ModerateContent(context.Context, *types.Issue) Verdict {
	return Verdict{ShouldPost: true, Reason: moderationUnavailable, Source: SourceFailOpen}
}

// GenerateTweet implements ContentGenerator
func (u Unavailable) GenerateTweet(context.Context, *types.Issue) (Draft, error) {
	return Draft{}, u.Err
}
