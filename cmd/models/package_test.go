package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPackageDuration(t *testing.T) {
	tests := []struct {
		name  string
		days  int
		valid bool
	}{
		{"one day minimum", 1, true},
		{"typical monthly", 30, true},
		{"full year maximum", 365, true},
		{"zero", 0, false},
		{"negative", -30, false},
		{"beyond a year", 366, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidPackageDuration(tt.days))
		})
	}
}
