package resolver

import (
	"testing"
	"time"
)

func TestPolicy_Backoff(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 0},
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 5 * time.Minute},
		{4, 15 * time.Minute},
		{5, 30 * time.Minute},
		{9, 30 * time.Minute},
	}
	for _, tt := range tests {
		if got := p.Backoff(tt.attempts); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestPolicy_Eligible(t *testing.T) {
	p := DefaultPolicy()
	now := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		item Item
		want bool
	}{
		{"new", Item{Status: Pending}, true},
		{"backing off", Item{Status: Pending, Attempts: 2, LastAttemptAt: now.Add(-59 * time.Second)}, false},
		{"backoff elapsed", Item{Status: Pending, Attempts: 2, LastAttemptAt: now.Add(-time.Minute)}, true},
		{"claimed", Item{Status: Processing, ClaimedAt: now.Add(-time.Minute)}, false},
		{"claim expired", Item{Status: Processing, ClaimedAt: now.Add(-5 * time.Minute)}, true},
		{"completed", Item{Status: Completed}, false},
		{"failed", Item{Status: Failed, Attempts: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Eligible(tt.item, now); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}
