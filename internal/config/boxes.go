package config

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Box is one sub-account of the fund. The set of boxes is fixed at startup;
// user balances and activities are partitioned by box ID.
type Box struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
	Description   string          `json:"description"`
}

type BoxConfig struct {
	Boxes []Box
}

func LoadBoxConfig() *BoxConfig {
	ids := strings.Split(getEnv("FUND_BOX_IDS", "1,2"), ",")

	boxes := make([]Box, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		boxes = append(boxes, Box{
			ID:            id,
			Name:          getEnv("FUND_BOX_"+id+"_NAME", "Box "+id),
			MonthlyAmount: getEnvAsDecimal("FUND_BOX_"+id+"_MONTHLY_AMOUNT", decimal.NewFromInt(100)),
			Description:   getEnv("FUND_BOX_"+id+"_DESCRIPTION", ""),
		})
	}

	return &BoxConfig{Boxes: boxes}
}

// Get returns the box with the given ID, or false when no such box exists.
func (c *BoxConfig) Get(id string) (Box, bool) {
	for _, b := range c.Boxes {
		if b.ID == id {
			return b, true
		}
	}
	return Box{}, false
}

// IsValid reports whether the ID names a configured box.
func (c *BoxConfig) IsValid(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// IDs returns the configured box IDs in declaration order.
func (c *BoxConfig) IDs() []string {
	ids := make([]string, len(c.Boxes))
	for i, b := range c.Boxes {
		ids[i] = b.ID
	}
	return ids
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if val := os.Getenv(key); val != "" {
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	}
	return defaultVal
}
