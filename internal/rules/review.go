package rules

import "fmt"

// transitions lists the allowed review moves. Rules never go back to
// draft: once a reviewer has looked at a rule, the decision stands until
// another decision replaces it.
var transitions = map[ReviewStatus][]ReviewStatus{
	StatusDraft:    {StatusApproved, StatusRejected},
	StatusApproved: {StatusRejected},
	StatusRejected: {StatusApproved},
}

// CheckTransition returns an error if a rule may not move from -> to.
// Re-applying the current status is allowed and is a no-op.
func CheckTransition(from, to ReviewStatus) error {
	if !validStatuses[to] {
		return fmt.Errorf("invalid review status %q", to)
	}
	if from == to {
		return nil
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("cannot move rule from %s to %s", from, to)
}
