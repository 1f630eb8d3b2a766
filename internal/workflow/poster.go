package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/internal/generator"
	"github.com/clintrovert/ourstreet/internal/metrics"
	"github.com/clintrovert/ourstreet/internal/platform"
	"github.com/clintrovert/ourstreet/pkg/types"
)

const (
	notApprovedMessage  = "Not approved for posting"
	noContentMessage    = "No tweet content generated"
	noResultMessage     = "Workflow completed without result"
	generateFailMessage = "Failed to generate tweet content"
)

// IssuePoster runs the posting pipeline for one issue
type IssuePoster interface {
	PostIssue(ctx context.Context, issue *types.Issue, opts types.PostOptions) types.TweetResult
}

// MediaUploader turns an issue's photo into a platform media id, or ""
type MediaUploader interface {
	Upload(ctx context.Context, issue *types.Issue, includeImage bool) string
}

// Option configures a Poster
type Option func(*Poster)

// WithMetrics records stage outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poster) {
		p.metrics = m
	}
}

// Poster moderates, writes, illustrates and publishes issues. It holds no
// per-run state, so one Poster may serve concurrent runs.
type Poster struct {
	generator generator.ContentGenerator
	media     MediaUploader
	publisher platform.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewPoster creates a posting pipeline over the given collaborators
func NewPoster(
	gen generator.ContentGenerator,
	media MediaUploader,
	publisher platform.Publisher,
	logger *zap.Logger,
	opts ...Option,
) *Poster {
	p := &Poster{
		generator: gen,
		media:     media,
		publisher: publisher,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PostIssue runs the full pipeline for one issue. It never panics and
// never returns an error: every exit is a TweetResult.
func (p *Poster) PostIssue(ctx context.Context, issue *types.Issue, opts types.PostOptions) (result types.TweetResult) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("posting workflow panicked", zap.Any("panic", r))
			result = types.Failure(fmt.Sprintf("%v", r))
			p.metrics.ObservePost(false, "panic")
		}
	}()

	if issue == nil {
		return types.Failure(generator.ErrNilIssue.Error())
	}

	logger = logger.With(zap.String("issue_id", issue.ID))
	logger.Info("starting social media posting workflow",
		zap.String("title", issue.Title),
		zap.String("category", string(issue.Category)),
		zap.Bool("include_image", opts.IncludeImage),
		zap.Bool("auto_approve", opts.AutoApprove),
	)

	state := NewState(issue, opts)
	p.run(ctx, state, logger)

	if state.Result != nil {
		p.metrics.ObservePost(state.Result.Success, outcomeReason(state))
		return *state.Result
	}

	msg := state.Error
	if msg == "" {
		msg = noResultMessage
	}
	p.metrics.ObservePost(false, outcomeReason(state))
	return types.Failure(msg)
}

// run drives the stages in order:
// moderate -> [approved?] -> generate -> [image?] -> upload -> post
func (p *Poster) run(ctx context.Context, s *State, logger *zap.Logger) {
	p.moderate(ctx, s, logger)
	if !s.ShouldPost {
		return
	}

	p.generate(ctx, s, logger)

	if s.wantsMedia() {
		p.upload(ctx, s, logger)
	}

	p.post(ctx, s, logger)
}

func (p *Poster) moderate(ctx context.Context, s *State, logger *zap.Logger) {
	if s.ModerationStatus == ModerationApproved {
		logger.Debug("auto-approved, skipping moderation")
		return
	}

	verdict := p.generator.ModerateContent(ctx, s.Issue)
	p.metrics.ObserveModeration(verdict.ShouldPost, string(verdict.Source))

	if !verdict.ShouldPost {
		logger.Info("issue rejected by moderation", zap.String("reason", verdict.Reason))
		s.ShouldPost = false
		s.ModerationStatus = ModerationRejected
		s.Error = verdict.Reason
		return
	}

	logger.Info("issue approved for posting",
		zap.String("reason", verdict.Reason),
		zap.String("source", string(verdict.Source)),
	)
	s.ShouldPost = true
	s.ModerationStatus = ModerationApproved
}

func (p *Poster) generate(ctx context.Context, s *State, logger *zap.Logger) {
	draft, err := p.generator.GenerateTweet(ctx, s.Issue)
	if err != nil {
		logger.Error("failed to generate tweet content", zap.Error(err))
		s.Error = generateFailMessage
		s.ShouldPost = false
		return
	}

	p.metrics.ObserveGeneration(string(draft.Source))
	logger.Info("generated tweet",
		zap.String("source", string(draft.Source)),
		zap.Int("length", generator.Length(draft.Text)),
	)
	s.TweetText = draft.Text
}

func (p *Poster) upload(ctx context.Context, s *State, logger *zap.Logger) {
	logger.Info("uploading image", zap.String("photo_url", s.Issue.PhotoURL))
	s.MediaID = p.media.Upload(ctx, s.Issue, s.IncludeImage)
}

func (p *Poster) post(ctx context.Context, s *State, logger *zap.Logger) {
	if !s.ShouldPost {
		logger.Info("skipping post, not approved")
		s.finish(types.Failure(notApprovedMessage))
		return
	}

	if s.TweetText == "" {
		logger.Error("no tweet text available")
		s.Error = "Missing tweet text"
		s.finish(types.Failure(noContentMessage))
		return
	}

	if !p.publisher.IsReady() {
		s.Error = "Twitter not configured"
		s.finish(types.Failure(platform.NotConfiguredMessage))
		return
	}

	content := types.TweetContent{Text: s.TweetText}
	if s.MediaID != "" {
		content.MediaIDs = []string{s.MediaID}
	}

	result := p.publisher.PostTweet(ctx, content)
	if result.Success {
		logger.Info("tweet posted", zap.String("url", result.URL))
	} else {
		logger.Error("tweet posting failed", zap.String("error", result.Error))
		s.Error = "Posting failed"
	}
	s.finish(result)
}

// PostMultipleIssues posts issues one at a time in input order, pausing
// between posts. A failed issue is tallied and the batch moves on. When ctx
// is cancelled the remaining issues are recorded as failed.
func (p *Poster) PostMultipleIssues(ctx context.Context, issues []*types.Issue, opts types.BatchOptions) types.BatchResult {
	p.metrics.ObserveBatch()
	p.logger.Info("batch posting issues", zap.Int("count", len(issues)))

	batch := types.BatchResult{Results: make([]types.TweetResult, 0, len(issues))}
	postOpts := types.PostOptions{IncludeImage: opts.IncludeImages, AutoApprove: opts.AutoApprove}

	for i, issue := range issues {
		if err := ctx.Err(); err != nil {
			batch.Record(types.Failure(fmt.Sprintf("batch cancelled: %v", err)))
			continue
		}

		p.logger.Info("processing batch issue",
			zap.Int("position", i+1),
			zap.Int("total", len(issues)),
		)
		batch.Record(p.PostIssue(ctx, issue, postOpts))

		if i < len(issues)-1 && opts.DelayBetweenPosts > 0 {
			p.logger.Debug("waiting before next post", zap.Duration("delay", opts.DelayBetweenPosts))
			sleep(ctx, opts.DelayBetweenPosts)
		}
	}

	p.logger.Info("batch posting complete",
		zap.Int("success", batch.Success),
		zap.Int("failed", batch.Failed),
	)
	return batch
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func outcomeReason(s *State) string {
	switch {
	case s.ModerationStatus == ModerationRejected:
		return "rejected"
	case s.Result == nil:
		return "no_result"
	case s.Result.Success:
		return "posted"
	case s.Result.Error == notApprovedMessage:
		return "not_approved"
	case s.Result.Error == noContentMessage:
		return "no_content"
	case s.Result.Error == platform.NotConfiguredMessage:
		return "not_configured"
	default:
		return "platform_error"
	}
}
