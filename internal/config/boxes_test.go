package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoadBoxConfig(t *testing.T) {
	t.Run("defaults to two boxes", func(t *testing.T) {
		cfg := LoadBoxConfig()

		assert.Equal(t, []string{"1", "2"}, cfg.IDs())
		box, ok := cfg.Get("1")
		assert.True(t, ok)
		assert.Equal(t, "Box 1", box.Name)
		assert.True(t, box.MonthlyAmount.Equal(decimal.NewFromInt(100)))
	})

	t.Run("environment overrides names and amounts", func(t *testing.T) {
		t.Setenv("FUND_BOX_IDS", "main,trips")
		t.Setenv("FUND_BOX_main_NAME", "Main Fund")
		t.Setenv("FUND_BOX_main_MONTHLY_AMOUNT", "250.50")
		t.Setenv("FUND_BOX_trips_DESCRIPTION", "Family trips")

		cfg := LoadBoxConfig()

		assert.Equal(t, []string{"main", "trips"}, cfg.IDs())

		main, ok := cfg.Get("main")
		assert.True(t, ok)
		assert.Equal(t, "Main Fund", main.Name)
		assert.True(t, main.MonthlyAmount.Equal(decimal.RequireFromString("250.50")))

		trips, ok := cfg.Get("trips")
		assert.True(t, ok)
		assert.Equal(t, "Family trips", trips.Description)
	})

	t.Run("invalid amount falls back to default", func(t *testing.T) {
		t.Setenv("FUND_BOX_IDS", "1")
		t.Setenv("FUND_BOX_1_MONTHLY_AMOUNT", "not-a-number")

		cfg := LoadBoxConfig()
		box, _ := cfg.Get("1")
		assert.True(t, box.MonthlyAmount.Equal(decimal.NewFromInt(100)))
	})

	t.Run("blank IDs are skipped", func(t *testing.T) {
		t.Setenv("FUND_BOX_IDS", "1, ,2,")

		cfg := LoadBoxConfig()
		assert.Equal(t, []string{"1", "2"}, cfg.IDs())
	})
}

func TestBoxConfig_IsValid(t *testing.T) {
	cfg := &BoxConfig{Boxes: []Box{{ID: "1"}, {ID: "2"}}}

	assert.True(t, cfg.IsValid("1"))
	assert.True(t, cfg.IsValid("2"))
	assert.False(t, cfg.IsValid("3"))
	assert.False(t, cfg.IsValid(""))
}
