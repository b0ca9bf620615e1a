package config

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Billing defaults. Organization / report level overrides take precedence;
// these are the last-resort values when nothing is configured on the entity.

const (
	defaultFreeHours         = "2.0"
	defaultOverageHourlyRate = "30.0"
)

func decimalFromEnv(key string, def string) decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		v = def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		d, _ = decimal.NewFromString(def)
	}
	return d
}

// GetFreeHoursDefault returns the global monthly free-hours allowance.
func GetFreeHoursDefault() decimal.Decimal {
	return decimalFromEnv("FREE_HOURS_DEFAULT", defaultFreeHours)
}

// GetOverageHourlyRate returns the default hourly rate charged for hours
// beyond the free-hours allowance.
func GetOverageHourlyRate() decimal.Decimal {
	return decimalFromEnv("OVERAGE_HOURLY_RATE", defaultOverageHourlyRate)
}
