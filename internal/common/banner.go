package common

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the startup banner and logs the same facts.
func PrintBanner(w io.Writer, config *Config, holdings int, logger *Logger) {
	serviceURL := fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)

	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	hr := lineColor + strings.Repeat("═", 60) + banner.ColorReset

	art := []string{
		` ███████  ██████  ██      ██  ██████`,
		` ██      ██    ██ ██      ██ ██    ██`,
		` █████   ██    ██ ██      ██ ██    ██`,
		` ██      ██    ██ ██      ██ ██    ██`,
		` ██       ██████  ███████ ██  ██████`,
	}

	fmt.Fprintf(w, "\n%s\n\n", hr)
	for _, line := range art {
		fmt.Fprintf(w, "%s%s%s\n", textColor, line, banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s  Portfolio market data, refreshed%s\n\n%s\n\n", textColor, banner.ColorReset, hr)

	kvLines := [][2]string{
		{"Version", GetVersion()},
		{"Commit", GetGitCommit()},
		{"Environment", config.Environment},
		{"Service URL", serviceURL},
		{"Holdings", fmt.Sprintf("%d", holdings)},
		{"Refresh every", config.Refresh.Interval().String()},
		{"Price TTL", config.Cache.PriceTTL().String()},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(w, "%s  %-16s %s%s\n", textColor, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s\n\n", hr)

	logger.Info().
		Str("version", GetVersion()).
		Str("commit", GetGitCommit()).
		Str("environment", config.Environment).
		Str("service_url", serviceURL).
		Int("holdings", holdings).
		Dur("refresh_interval", config.Refresh.Interval()).
		Msg("Application started")
}

// PrintShutdownBanner displays the shutdown banner.
func PrintShutdownBanner(w io.Writer, uptime time.Duration, logger *Logger) {
	hr := banner.ColorCyan + strings.Repeat("═", 42) + banner.ColorReset
	fmt.Fprintf(w, "\n%s\n%s  FOLIO: SHUTTING DOWN%s\n%s\n\n", hr, banner.ColorBold+banner.ColorWhite, banner.ColorReset, hr)
	logger.Info().Dur("uptime", uptime).Msg("Application shutting down")
}
