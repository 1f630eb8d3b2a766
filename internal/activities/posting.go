package activities

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/internal/workflow"
	"github.com/clintrovert/ourstreet/pkg/types"
)

// PostingActivities runs the posting pipeline inside a Temporal activity
type PostingActivities struct {
	poster workflow.IssuePoster
	logger *zap.Logger
}

// NewPostingActivities creates a new posting activities handler
func NewPostingActivities(poster workflow.IssuePoster, logger *zap.Logger) *PostingActivities {
	return &PostingActivities{
		poster: poster,
		logger: logger,
	}
}

// PostIssueActivity posts a single issue. A failed post is a result, not an
// activity error, so Temporal never retries a post the platform refused.
func (a *PostingActivities) PostIssueActivity(ctx context.Context, input PostIssueInput) (types.TweetResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("posting issue", "issue_id", input.Issue.ID)

	issue := input.Issue
	result := a.poster.PostIssue(ctx, &issue, input.Options)

	if result.Success {
		a.logger.Info("issue posted from batch",
			zap.String("issue_id", issue.ID),
			zap.String("post_id", result.PostID),
		)
	} else {
		a.logger.Warn("issue not posted from batch",
			zap.String("issue_id", issue.ID),
			zap.String("error", result.Error),
		)
	}

	return result, nil
}
