package crowdsafe

import (
	"log/slog"
	"math"
	"os"
	"strconv"
)

// FillEnvVar returns the value of a runtime Environment Variable
func FillEnvVar(ev string) string {
	// If the EnvVar doesn't exist return a default string
	value := os.Getenv(ev)
	if value == "" {
		value = "ENOENT"
	}
	return value
}

// FillEnvVarInt returns def when the variable is unset or not an integer
func FillEnvVarInt(ev string, def int) int {
	value := os.Getenv(ev)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Error("Env var is not an integer, using default",
			slog.String("var", ev), slog.String("value", value), slog.Int("default", def))
		return def
	}
	return n
}

// FillEnvVarFloat returns def when the variable is unset or not a number
func FillEnvVarFloat(ev string, def float64) float64 {
	value := os.Getenv(ev)
	if value == "" {
		return def
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		slog.Error("Env var is not a number, using default",
			slog.String("var", ev), slog.String("value", value), slog.Float64("default", def))
		return def
	}
	return f
}

// FloatPrecise rounds f to n decimal places for display and logging
func FloatPrecise(f float64, n int) float64 {
	p := math.Pow(10, float64(n))
	return math.Round(f*p) / p
}

// UrlCat is variadic, concatenating any set of strings into a URL.
func UrlCat(u ...string) string {
	var completeURL string
	for _, p := range u {
		completeURL = completeURL + p
	}
	return completeURL
}

// clamp keeps v inside [lo, hi]
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
