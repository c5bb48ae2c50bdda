package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to ReviewStatus
		ok       bool
	}{
		{StatusDraft, StatusApproved, true},
		{StatusDraft, StatusRejected, true},
		{StatusDraft, StatusDraft, true},
		{StatusApproved, StatusRejected, true},
		{StatusApproved, StatusApproved, true},
		{StatusRejected, StatusApproved, true},
		{StatusApproved, StatusDraft, false},
		{StatusRejected, StatusDraft, false},
		{StatusDraft, "pending", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := CheckTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
