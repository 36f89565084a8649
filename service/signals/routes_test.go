package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finfx/finfx-server/cmd/models"
)

func validTestSignal() models.Signal {
	return models.Signal{
		PairName:   "EURUSD",
		Direction:  models.DirectionLong,
		EntryTime:  time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		EntryPrice: 1.0845,
		LotSize:    0.5,
	}
}

func TestValidateSignalNormalizes(t *testing.T) {
	signal := validTestSignal()
	signal.PairName = "  EURUSD  "
	signal.Direction = "long"

	require.NoError(t, validateSignal(&signal))

	assert.Equal(t, "EURUSD", signal.PairName)
	assert.Equal(t, models.DirectionLong, signal.Direction)
	assert.Equal(t, models.OutcomeOpen, signal.Outcome)
}

func TestValidateSignalRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Signal)
	}{
		{"missing pair name", func(s *models.Signal) { s.PairName = "   " }},
		{"unknown direction", func(s *models.Signal) { s.Direction = "UP" }},
		{"zero entry time", func(s *models.Signal) { s.EntryTime = time.Time{} }},
		{"zero entry price", func(s *models.Signal) { s.EntryPrice = 0 }},
		{"negative entry price", func(s *models.Signal) { s.EntryPrice = -1.2 }},
		{"lot size below minimum", func(s *models.Signal) { s.LotSize = 0.05 }},
		{"unknown outcome", func(s *models.Signal) { s.Outcome = "pending" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal := validTestSignal()
			tt.mutate(&signal)
			assert.Error(t, validateSignal(&signal))
		})
	}
}

func TestValidateSignalKeepsExplicitOutcome(t *testing.T) {
	signal := validTestSignal()
	signal.Outcome = models.OutcomeWin

	require.NoError(t, validateSignal(&signal))
	assert.Equal(t, models.OutcomeWin, signal.Outcome)
}

func TestApplyBulkDefaultsFillsServerFields(t *testing.T) {
	// Publisher clients send only the trade fields and leave ownership and
	// sizing to the server.
	signal := models.Signal{
		PairName:   "XAUUSD",
		Direction:  models.DirectionShort,
		EntryTime:  time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		EntryPrice: 2310.50,
	}

	applyBulkDefaults(&signal, 7, 3)

	require.NoError(t, validateSignal(&signal))
	assert.Equal(t, uint(7), signal.UserID)
	require.NotNil(t, signal.BotID)
	assert.Equal(t, uint(3), *signal.BotID)
	assert.Equal(t, 1.0, signal.LotSize)
}

func TestApplyBulkDefaultsKeepsExplicitValues(t *testing.T) {
	signal := validTestSignal()
	signal.UserID = 11

	applyBulkDefaults(&signal, 7, 3)

	assert.Equal(t, uint(11), signal.UserID)
	assert.Equal(t, 0.5, signal.LotSize)
}

func TestApplyBulkDefaultsLeavesBadLotSizeForValidation(t *testing.T) {
	signal := validTestSignal()
	signal.LotSize = 0.05

	applyBulkDefaults(&signal, 7, 3)

	// Only an absent lot size gets the default. An explicit bad one still
	// fails validation.
	assert.Equal(t, 0.05, signal.LotSize)
	assert.Error(t, validateSignal(&signal))
}

func TestWinRate(t *testing.T) {
	tests := []struct {
		name  string
		wins  int64
		total int64
		want  float64
	}{
		{"no closed signals", 0, 0, 0},
		{"all wins", 3, 3, 100},
		{"half", 1, 2, 50},
		{"two thirds rounds to two decimals", 2, 3, 66.67},
		{"one third rounds to two decimals", 1, 3, 33.33},
		{"no wins", 0, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, winRate(tt.wins, tt.total))
		})
	}
}
