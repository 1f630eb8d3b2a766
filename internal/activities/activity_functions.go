package activities

import (
	"context"

	"github.com/clintrovert/ourstreet/pkg/types"
)

// Activity functions that will be registered with the Temporal worker.
// These wrap the activity implementations so workflows can reference them
// by function.

var postingActivities *PostingActivities

// SetPostingActivities sets the posting activities implementation
func SetPostingActivities(pa *PostingActivities) {
	postingActivities = pa
}

// PostIssueActivity is the activity function for posting one issue
func PostIssueActivity(ctx context.Context, input PostIssueInput) (types.TweetResult, error) {
	if postingActivities == nil {
		return types.Failure("posting activities not initialized"), nil
	}
	return postingActivities.PostIssueActivity(ctx, input)
}
