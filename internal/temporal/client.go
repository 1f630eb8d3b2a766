package temporal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/internal/temporal/workflows"
	"github.com/clintrovert/ourstreet/pkg/types"
)

// ErrBatchNotFound is returned when no batch workflow has the given id
var ErrBatchNotFound = errors.New("batch not found")

// BatchStatus describes a durable batch run
type BatchStatus struct {
	WorkflowID string             `json:"workflowId"`
	RunID      string             `json:"runId"`
	Status     string             `json:"status"`
	Result     *types.BatchResult `json:"result,omitempty"`
}

// Client wraps Temporal client functionality
type Client struct {
	temporalClient client.Client
	logger         *zap.Logger
	taskQueue      string
}

// NewClient creates a new Temporal client
func NewClient(address, namespace, taskQueue string, logger *zap.Logger) (*Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  address,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}

	return NewClientFrom(c, taskQueue, logger), nil
}

// NewClientFrom wraps an existing Temporal client
func NewClientFrom(c client.Client, taskQueue string, logger *zap.Logger) *Client {
	return &Client{
		temporalClient: c,
		logger:         logger,
		taskQueue:      taskQueue,
	}
}

// StartBatchPosting starts a durable batch posting workflow
func (c *Client) StartBatchPosting(ctx context.Context, issues []types.Issue, opts types.BatchOptions) (string, error) {
	workflowID := "social-batch-" + uuid.NewString()

	workflowOptions := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: c.taskQueue,
	}

	input := workflows.BatchInput{
		Issues:  issues,
		Options: opts,
	}

	we, err := c.temporalClient.ExecuteWorkflow(ctx, workflowOptions, workflows.BatchPostingWorkflow, input)
	if err != nil {
		return "", fmt.Errorf("failed to start workflow: %w", err)
	}

	c.logger.Info("started batch posting workflow",
		zap.String("workflow_id", we.GetID()),
		zap.String("run_id", we.GetRunID()),
		zap.Int("issues", len(issues)),
	)

	return we.GetID(), nil
}

// GetBatchStatus reports a batch's execution status, with its tally once
// the run has completed
func (c *Client) GetBatchStatus(ctx context.Context, workflowID string) (*BatchStatus, error) {
	resp, err := c.temporalClient.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to describe workflow %s: %w", workflowID, err)
	}

	info := resp.GetWorkflowExecutionInfo()
	status := &BatchStatus{
		WorkflowID: workflowID,
		RunID:      info.GetExecution().GetRunId(),
		Status:     info.GetStatus().String(),
	}

	if info.GetCloseTime() == nil {
		return status, nil
	}

	var result types.BatchResult
	if err := c.temporalClient.GetWorkflow(ctx, workflowID, status.RunID).Get(ctx, &result); err != nil {
		c.logger.Warn("batch workflow closed without result",
			zap.String("workflow_id", workflowID),
			zap.Error(err),
		)
		return status, nil
	}
	status.Result = &result

	return status, nil
}

// CancelBatch requests cancellation of a running batch. Issues already
// posted stay posted.
func (c *Client) CancelBatch(ctx context.Context, workflowID string) error {
	if err := c.temporalClient.CancelWorkflow(ctx, workflowID, ""); err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %s", ErrBatchNotFound, workflowID)
		}
		return fmt.Errorf("failed to cancel batch %s: %w", workflowID, err)
	}

	c.logger.Info("requested batch cancellation", zap.String("workflow_id", workflowID))
	return nil
}

// Close closes the Temporal client
func (c *Client) Close() {
	c.temporalClient.Close()
}
