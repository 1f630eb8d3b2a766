package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/clintrovert/ourstreet/internal/activities"
	"github.com/clintrovert/ourstreet/pkg/types"
)

// BatchPostingWorkflow posts issues one at a time in input order, sleeping
// between posts. A failed issue is tallied and the batch continues. On
// cancellation the issues not yet posted are tallied as failed and the
// workflow ends cancelled.
func BatchPostingWorkflow(ctx workflow.Context, input BatchInput) (types.BatchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting batch posting workflow", "issues", len(input.Issues))

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		// A retried post may publish twice.
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	batch := types.BatchResult{Results: make([]types.TweetResult, 0, len(input.Issues))}
	postOpts := types.PostOptions{
		IncludeImage: input.Options.IncludeImages,
		AutoApprove:  input.Options.AutoApprove,
	}

	for i, issue := range input.Issues {
		if err := ctx.Err(); err != nil {
			cancelRemaining(&batch, len(input.Issues)-i, err)
			logger.Info("batch posting workflow cancelled", "posted", i)
			return batch, err
		}
		logger.Info("processing batch issue", "position", i+1, "total", len(input.Issues), "issue_id", issue.ID)

		var result types.TweetResult
		err := workflow.ExecuteActivity(ctx, activities.PostIssueActivity, activities.PostIssueInput{
			Issue:   issue,
			Options: postOpts,
		}).Get(ctx, &result)
		if err != nil {
			logger.Error("posting activity failed", "issue_id", issue.ID, "error", err)
			result = types.Failure(err.Error())
		}
		batch.Record(result)

		if i < len(input.Issues)-1 && input.Options.DelayBetweenPosts > 0 {
			if err := workflow.Sleep(ctx, input.Options.DelayBetweenPosts); err != nil {
				cancelRemaining(&batch, len(input.Issues)-i-1, err)
				logger.Info("batch posting workflow cancelled", "posted", i+1)
				return batch, err
			}
		}
	}

	logger.Info("batch posting workflow completed", "success", batch.Success, "failed", batch.Failed)
	return batch, nil
}

func cancelRemaining(batch *types.BatchResult, n int, err error) {
	for range n {
		batch.Record(types.Failure(fmt.Sprintf("batch cancelled: %v", err)))
	}
}
