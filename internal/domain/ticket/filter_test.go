package ticket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "ticketd/internal/domain/ticket/valueobjects"
)

func TestFilter_Matches(t *testing.T) {
	tk, err := ReconstructTicket(1, "title", "desc", "alice", vo.StatusOpen, vo.PriorityHigh,
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	open := vo.StatusOpen
	closed := vo.StatusClosed
	high := vo.PriorityHigh
	alice := "alice"
	bob := "bob"

	cases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter matches everything", Filter{}, true},
		{"matching status", Filter{Status: &open}, true},
		{"mismatched status", Filter{Status: &closed}, false},
		{"matching conjunction", Filter{Status: &open, Priority: &high, Assignee: &alice}, true},
		{"one mismatched field fails the conjunction", Filter{Status: &open, Assignee: &bob}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Matches(tk))
		})
	}
}
