package feed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/pkg/types"
)

const (
	defaultPollLimit = 50

	// DefaultLookback is how far behind the watermark each poll reads again,
	// so rows committed late with an earlier created_at are still picked up
	DefaultLookback = 5 * time.Minute
)

// PollerOption configures a Poller
type PollerOption func(*Poller)

// WithLookback overrides DefaultLookback
func WithLookback(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.lookback = d
	}
}

// Poller watches the issue store for newly created issues
type Poller struct {
	source     Source
	logger     *zap.Logger
	priorities []types.Priority
	interval   time.Duration
	lookback   time.Duration
	limit      int
	floor      time.Time

	mu        sync.RWMutex
	watermark time.Time
	// delivered holds ids inside the look-back window, by created_at
	delivered map[string]time.Time
}

// NewPoller creates a poller that reports issues created at or after since
func NewPoller(source Source, priorities []types.Priority, interval time.Duration, since time.Time, logger *zap.Logger, opts ...PollerOption) *Poller {
	p := &Poller{
		source:     source,
		logger:     logger,
		priorities: priorities,
		interval:   interval,
		lookback:   DefaultLookback,
		limit:      defaultPollLimit,
		floor:      since,
		watermark:  since,
		delivered:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start starts the polling loop
func (p *Poller) Start(ctx context.Context, issueChan chan<- *types.Issue) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial poll
	p.poll(ctx, issueChan)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stopping issue poller")
			return
		case <-ticker.C:
			p.poll(ctx, issueChan)
		}
	}
}

// poll performs a single poll operation
func (p *Poller) poll(ctx context.Context, issueChan chan<- *types.Issue) {
	since, exclude := p.window()
	issues, err := p.source.NewIssues(ctx, IssueQuery{
		Since:      since,
		Priorities: p.priorities,
		Exclude:    exclude,
		Limit:      p.limit,
	})
	if err != nil {
		p.logger.Error("failed to get new issues", zap.Time("since", since), zap.Error(err))
		return
	}

	for _, issue := range issues {
		if p.seen(issue.ID) {
			continue
		}
		select {
		case issueChan <- issue:
			p.deliver(issue)
			p.logger.Info("found new issue",
				zap.String("issue_id", issue.ID),
				zap.String("priority", string(issue.Priority)),
			)
		case <-ctx.Done():
			return
		}
	}

	p.prune()
}

// Watermark returns the creation time of the newest issue reported so far
func (p *Poller) Watermark() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.watermark
}

// window returns where the next poll starts reading and the ids it skips
func (p *Poller) window() (time.Time, []string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	since := p.watermark.Add(-p.lookback)
	if since.Before(p.floor) {
		since = p.floor
	}
	exclude := make([]string, 0, len(p.delivered))
	for id := range p.delivered {
		exclude = append(exclude, id)
	}
	return since, exclude
}

func (p *Poller) seen(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.delivered[id]
	return ok
}

func (p *Poller) deliver(issue *types.Issue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delivered[issue.ID] = issue.CreatedAt
	if issue.CreatedAt.After(p.watermark) {
		p.watermark = issue.CreatedAt
	}
}

// prune forgets ids that fell out of the look-back window
func (p *Poller) prune() {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := p.watermark.Add(-p.lookback)
	for id, created := range p.delivered {
		if created.Before(cutoff) {
			delete(p.delivered, id)
		}
	}
}
