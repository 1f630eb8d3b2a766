package autopost

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/internal/config"
	"github.com/clintrovert/ourstreet/internal/feed"
	"github.com/clintrovert/ourstreet/internal/workflow"
	"github.com/clintrovert/ourstreet/pkg/types"
)

const queueSize = 64

var (
	// ErrNotEligible is returned when an issue's priority is not configured for auto-posting
	ErrNotEligible = errors.New("issue priority not eligible for auto-posting")

	// ErrQueueFull is returned when the posting queue cannot take another issue
	ErrQueueFull = errors.New("auto-post queue is full")
)

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithPoller feeds the orchestrator from an issue store poller
func WithPoller(p *feed.Poller) Option {
	return func(o *Orchestrator) {
		o.poller = p
	}
}

// WithSource lets triggers carry only an issue id
func WithSource(s feed.Source) Option {
	return func(o *Orchestrator) {
		o.source = s
	}
}

// Orchestrator posts newly created issues as they arrive, one at a time
type Orchestrator struct {
	poster      workflow.IssuePoster
	tracker     feed.Tracker
	poller      *feed.Poller
	source      feed.Source
	priorities  []types.Priority
	autoApprove bool
	postDelay   time.Duration
	queue       chan *types.Issue
	logger      *zap.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	poster workflow.IssuePoster,
	tracker feed.Tracker,
	cfg config.AutoPostConfig,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		poster:      poster,
		tracker:     tracker,
		priorities:  cfg.Priorities,
		autoApprove: cfg.AutoApprove,
		postDelay:   cfg.PostDelay,
		queue:       make(chan *types.Issue, queueSize),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start starts the orchestration loop
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.poller != nil {
		go o.poller.Start(ctx, o.queue)
	}

	o.logger.Info("auto-post orchestrator started",
		zap.Strings("priorities", priorityNames(o.priorities)),
		zap.Bool("auto_approve", o.autoApprove),
		zap.Bool("polling", o.poller != nil),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case issue := <-o.queue:
			posted, err := o.processIssue(ctx, issue)
			if err != nil {
				o.logger.Error("failed to process issue",
					zap.String("issue_id", issue.ID),
					zap.Error(err),
				)
			}
			if posted && o.postDelay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(o.postDelay):
				}
			}
		}
	}
}

// Eligible reports whether an issue's priority qualifies for auto-posting.
// An empty priority list admits everything.
func (o *Orchestrator) Eligible(issue *types.Issue) bool {
	return len(o.priorities) == 0 || issue.Priority.In(o.priorities)
}

// Trigger queues a newly created issue without waiting for it to be posted
func (o *Orchestrator) Trigger(issue *types.Issue) error {
	if !o.Eligible(issue) {
		return ErrNotEligible
	}

	select {
	case o.queue <- issue:
		o.logger.Info("queued issue for auto-post", zap.String("issue_id", issue.ID))
		return nil
	default:
		return ErrQueueFull
	}
}

// TriggerByID loads an issue from the store and queues it
func (o *Orchestrator) TriggerByID(ctx context.Context, id string) (*types.Issue, error) {
	if o.source == nil {
		return nil, feed.ErrNoSource
	}

	issue, err := o.source.Issue(ctx, id)
	if err != nil {
		return nil, err
	}
	return issue, o.Trigger(issue)
}

// processIssue posts a single issue unless another path already claimed it
func (o *Orchestrator) processIssue(ctx context.Context, issue *types.Issue) (bool, error) {
	if !o.Eligible(issue) {
		o.logger.Debug("skipping issue below auto-post priority",
			zap.String("issue_id", issue.ID),
			zap.String("priority", string(issue.Priority)),
		)
		return false, nil
	}

	claimed, err := o.tracker.Claim(ctx, issue.ID)
	if err != nil {
		return false, fmt.Errorf("failed to claim issue: %w", err)
	}
	if !claimed {
		o.logger.Debug("issue already posted", zap.String("issue_id", issue.ID))
		return false, nil
	}

	o.logger.Info("auto-posting issue",
		zap.String("issue_id", issue.ID),
		zap.String("priority", string(issue.Priority)),
	)

	result := o.poster.PostIssue(ctx, issue, types.PostOptions{
		IncludeImage: true,
		AutoApprove:  o.autoApprove,
	})
	if !result.Success {
		o.logger.Warn("auto-post failed",
			zap.String("issue_id", issue.ID),
			zap.String("error", result.Error),
		)
		return true, nil
	}

	o.logger.Info("issue auto-posted",
		zap.String("issue_id", issue.ID),
		zap.String("url", result.URL),
	)
	return true, nil
}

func priorityNames(ps []types.Priority) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
