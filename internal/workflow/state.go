package workflow

import (
	"github.com/clintrovert/ourstreet/pkg/types"
)

// ModerationStatus tracks where an issue stands with moderation
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// State is the working data of one posting run. It belongs to a single
// invocation and is discarded once the result has been returned.
type State struct {
	Issue            *types.Issue
	IncludeImage     bool
	TweetText        string
	MediaID          string
	ShouldPost       bool
	ModerationStatus ModerationStatus
	Result           *types.TweetResult
	Error            string
}

// NewState seeds a run from caller input. Auto-approved runs start out
// approved and skip moderation.
func NewState(issue *types.Issue, opts types.PostOptions) *State {
	s := &State{
		Issue:            issue,
		IncludeImage:     opts.IncludeImage,
		ShouldPost:       opts.AutoApprove,
		ModerationStatus: ModerationPending,
	}
	if opts.AutoApprove {
		s.ModerationStatus = ModerationApproved
	}
	return s
}

// wantsMedia reports whether the upload stage should run
func (s *State) wantsMedia() bool {
	return s.IncludeImage && s.Issue.HasPhoto()
}

func (s *State) finish(r types.TweetResult) {
	s.Result = &r
}
