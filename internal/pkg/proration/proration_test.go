package proration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCredit(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expiry := start.Add(30 * 24 * time.Hour)

	tests := []struct {
		name      string
		pricePaid int64
		start     *time.Time
		expiry    *time.Time
		now       time.Time
		expected  int64
	}{
		{"halfway through cycle", 300, &start, &expiry, start.Add(15 * 24 * time.Hour), 150},
		{"start of cycle", 300, &start, &expiry, start, 300},
		{"one day left", 300, &start, &expiry, expiry.Add(-24 * time.Hour), 10},
		{"at expiry", 300, &start, &expiry, expiry, 0},
		{"past expiry", 300, &start, &expiry, expiry.Add(24 * time.Hour), 0},
		{"before start clamps to full price", 300, &start, &expiry, start.Add(-24 * time.Hour), 300},
		{"fractional result floors", 100, &start, &expiry, start.Add(20 * 24 * time.Hour), 33},
		{"zero price", 0, &start, &expiry, start, 0},
		{"negative price", -50, &start, &expiry, start, 0},
		{"missing start date", 300, nil, &expiry, start, 0},
		{"missing expiry date", 300, &start, nil, start, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Credit(tt.pricePaid, tt.start, tt.expiry, tt.now))
		})
	}
}

func TestCredit_InvertedCycle(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expiry := start.Add(-24 * time.Hour)
	assert.Zero(t, Credit(300, &start, &expiry, start))
}

func TestCredit_NeverExceedsPricePaid(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expiry := start.Add(30 * 24 * time.Hour)
	for day := -5; day <= 35; day++ {
		now := start.Add(time.Duration(day) * 24 * time.Hour)
		credit := Credit(19900, &start, &expiry, now)
		assert.GreaterOrEqual(t, credit, int64(0))
		assert.LessOrEqual(t, credit, int64(19900))
	}
}

func TestCredit_RealisticMinorUnitPrices(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expiry := start.Add(30 * 24 * time.Hour)

	// Minor-unit prices must not overflow the intermediate product.
	assert.Equal(t, int64(9950), Credit(19900, &start, &expiry, start.Add(15*24*time.Hour)))
	assert.Equal(t, int64(4950), Credit(9900, &start, &expiry, start.Add(15*24*time.Hour)))

	yearly := start.Add(365 * 24 * time.Hour)
	assert.Equal(t, int64(99500), Credit(199000, &start, &yearly, start.Add(365*12*time.Hour)))
}

func TestUpgradeCharge(t *testing.T) {
	assert.Equal(t, int64(100), UpgradeCharge(250, 150))
	assert.Equal(t, int64(250), UpgradeCharge(250, 0))
	// Credit exceeding the new price is forfeited, never refunded.
	assert.Equal(t, int64(0), UpgradeCharge(100, 150))
}
