package workflows

import (
	"github.com/clintrovert/ourstreet/pkg/types"
)

// BatchInput is the input for the batch posting workflow
type BatchInput struct {
	Issues  []types.Issue
	Options types.BatchOptions
}
