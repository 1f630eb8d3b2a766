package activities

import (
	"github.com/clintrovert/ourstreet/pkg/types"
)

// PostIssueInput is the input of the posting activity
type PostIssueInput struct {
	Issue   types.Issue
	Options types.PostOptions
}
