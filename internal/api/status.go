package api

import (
	"github.com/clintrovert/ourstreet/internal/config"
)

// Status reports how the posting pipeline is configured
type Status struct {
	TwitterConfigured bool     `json:"twitterConfigured"`
	AIConfigured      bool     `json:"aiConfigured"`
	AutoPostEnabled   bool     `json:"autoPostEnabled"`
	AutoApprove       bool     `json:"autoApprove"`
	PostPriorities    []string `json:"postPriorities"`
	Ready             bool     `json:"ready"`
}

// NewStatus builds the status report from configuration
func NewStatus(cfg *config.Config) Status {
	priorities := make([]string, len(cfg.AutoPost.Priorities))
	for i, p := range cfg.AutoPost.Priorities {
		priorities[i] = string(p)
	}

	twitter := cfg.Twitter.Complete()
	ai := cfg.AI.APIKey != ""

	return Status{
		TwitterConfigured: twitter,
		AIConfigured:      ai,
		AutoPostEnabled:   cfg.AutoPost.Enabled,
		AutoApprove:       cfg.AutoPost.AutoApprove,
		PostPriorities:    priorities,
		Ready:             twitter && ai,
	}
}
