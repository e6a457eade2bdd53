package config

import (
	"os"
	"strconv"
	"time"
)

type PointsConfig struct {
	SaveTripCost    int64         // points debited when a preview is saved as a trip
	WelcomeBonus    int64         // points granted on registration
	BalanceCacheTTL time.Duration // cached balance lifetime in Redis
	PreviewTTL      time.Duration // preview cache lifetime in Redis
	PointsPerGHS    float64
	PointsPerNGN    float64
	PointsPerUSD    float64
	DefaultCurrency string        // currency assumed when a top-up omits one
	QuoteTTL        time.Duration // how long a points quote stays valid
}

func LoadPointsConfig() *PointsConfig {
	return &PointsConfig{
		SaveTripCost:    getEnvAsInt64("POINTS_SAVE_TRIP_COST", 100),
		WelcomeBonus:    getEnvAsInt64("POINTS_WELCOME_BONUS", 50),
		BalanceCacheTTL: getEnvAsDuration("POINTS_BALANCE_CACHE_TTL", 10*time.Minute),
		PreviewTTL:      getEnvAsDuration("PREVIEW_CACHE_TTL", 7*24*time.Hour),
		PointsPerGHS:    getEnvAsFloat("POINTS_PER_GHS", 2.5),
		PointsPerNGN:    getEnvAsFloat("POINTS_PER_NGN", 0.1),
		PointsPerUSD:    getEnvAsFloat("POINTS_PER_USD", 10),
		DefaultCurrency: getEnv("POINTS_DEFAULT_CURRENCY", "GHS"),
		QuoteTTL:        getEnvAsDuration("POINTS_QUOTE_TTL", 15*time.Minute),
	}
}

// PointsFor converts a settled payment in minor units to points using the
// per-currency rate. Unknown currencies convert to zero points.
func (c *PointsConfig) PointsFor(currency string, amountMinor int64) int64 {
	major := float64(amountMinor) / 100
	switch currency {
	case "GHS":
		return int64(major * c.PointsPerGHS)
	case "NGN":
		return int64(major * c.PointsPerNGN)
	case "USD":
		return int64(major * c.PointsPerUSD)
	default:
		return 0
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
