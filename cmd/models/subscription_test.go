package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconcile(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		status      SubscriptionStatus
		expiresAt   time.Time
		wantChanged bool
		wantStatus  SubscriptionStatus
	}{
		{
			name:        "active past expiry flips to expired",
			status:      SubscriptionActive,
			expiresAt:   now.Add(-time.Hour),
			wantChanged: true,
			wantStatus:  SubscriptionExpired,
		},
		{
			name:        "paused past expiry flips to expired",
			status:      SubscriptionPaused,
			expiresAt:   now.Add(-24 * time.Hour),
			wantChanged: true,
			wantStatus:  SubscriptionExpired,
		},
		{
			name:        "exactly at expiry counts as expired",
			status:      SubscriptionActive,
			expiresAt:   now,
			wantChanged: true,
			wantStatus:  SubscriptionExpired,
		},
		{
			name:        "active before expiry is untouched",
			status:      SubscriptionActive,
			expiresAt:   now.Add(time.Hour),
			wantChanged: false,
			wantStatus:  SubscriptionActive,
		},
		{
			name:        "expired stays expired",
			status:      SubscriptionExpired,
			expiresAt:   now.Add(-time.Hour),
			wantChanged: false,
			wantStatus:  SubscriptionExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &BotSubscription{Status: tt.status, ExpiresAt: tt.expiresAt}
			changed := sub.Reconcile(now)

			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantStatus, sub.Status)
		})
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	sub := &BotSubscription{Status: SubscriptionActive, ExpiresAt: now.Add(-time.Hour)}

	assert.True(t, sub.Reconcile(now))
	assert.False(t, sub.Reconcile(now))
	assert.Equal(t, SubscriptionExpired, sub.Status)
}

func TestIsExpired(t *testing.T) {
	expiry := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	sub := &BotSubscription{ExpiresAt: expiry}

	assert.False(t, sub.IsExpired(expiry.Add(-time.Second)))
	assert.True(t, sub.IsExpired(expiry))
	assert.True(t, sub.IsExpired(expiry.Add(time.Second)))
}

func TestIsLive(t *testing.T) {
	assert.True(t, (&BotSubscription{Status: SubscriptionActive}).IsLive())
	assert.True(t, (&BotSubscription{Status: SubscriptionPaused}).IsLive())
	assert.False(t, (&BotSubscription{Status: SubscriptionExpired}).IsLive())
}

func TestSubscriptionExpiry(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		days     int
		expected time.Time
	}{
		{
			name:     "thirty days from january first",
			start:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			days:     30,
			expected: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "rolls over a short month",
			start:    time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			days:     30,
			expected: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "full year crosses into the next",
			start:    time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC),
			days:     365,
			expected: time.Date(2026, 6, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "time of day is preserved",
			start:    time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC),
			days:     7,
			expected: time.Date(2025, 3, 17, 23, 59, 59, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SubscriptionExpiry(tt.start, tt.days))
		})
	}
}

func TestValidSubscriptionStatus(t *testing.T) {
	assert.True(t, ValidSubscriptionStatus(SubscriptionActive))
	assert.True(t, ValidSubscriptionStatus(SubscriptionPaused))
	assert.True(t, ValidSubscriptionStatus(SubscriptionExpired))
	assert.False(t, ValidSubscriptionStatus(""))
	assert.False(t, ValidSubscriptionStatus("cancelled"))
	assert.False(t, ValidSubscriptionStatus("Active"))
}

func TestLiveStatuses(t *testing.T) {
	assert.Equal(t, []SubscriptionStatus{SubscriptionActive, SubscriptionPaused}, LiveStatuses())
}
