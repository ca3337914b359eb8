package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ringhist/pkg/auth"
	"ringhist/pkg/config"
	"ringhist/pkg/logger"
	"ringhist/pkg/ratelimit"
	"ringhist/pkg/ring"
	"ringhist/pkg/scanner"
	"ringhist/pkg/ui"
)

var (
	scanLimit       int
	scanResume      bool
	scanResetResume bool
	scanStateFile   string
	scanDownloadDir string
	scanTimezone    string
	scanWindowEnd   string
	scanConcurrent  int
	scanRateLimit   int
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan device history and download overnight recordings",
	Long: `Scan the event history of every device on the account, find events
inside the overnight window, and download their recordings.

Downloads are idempotent: recordings already on disk are never
re-fetched or overwritten. With --resume, each device continues from
the oldest event the previous run reached.`,
	Example: `  # Scan up to 3000 events per device
  ringhist scan

  # Continue where the last scan stopped
  ringhist scan --resume

  # Different window and timezone
  ringhist scan --window-end 06:00 --timezone America/New_York`,
	Run: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().IntVar(&scanLimit, "limit", 0, "total events to inspect per device (0 uses config, default 3000)")
	scanCmd.Flags().BoolVar(&scanResume, "resume", false, "continue from the saved checkpoint")
	scanCmd.Flags().BoolVar(&scanResetResume, "reset-resume", false, "discard saved checkpoints before scanning")
	scanCmd.Flags().StringVar(&scanStateFile, "state-file", "", "resume state file path")
	scanCmd.Flags().StringVar(&scanDownloadDir, "download-dir", "", "directory for downloaded recordings")
	scanCmd.Flags().StringVar(&scanTimezone, "timezone", "", "IANA timezone for the match window")
	scanCmd.Flags().StringVar(&scanWindowEnd, "window-end", "", "inclusive end of the overnight window (HH:MM)")
	scanCmd.Flags().IntVar(&scanConcurrent, "concurrent", 0, "concurrent recording downloads")
	scanCmd.Flags().IntVar(&scanRateLimit, "rate-limit", 0, "API requests per minute")
}

func runScan(cmd *cobra.Command, args []string) {
	flags := map[string]interface{}{
		"limit":        scanLimit,
		"state-file":   scanStateFile,
		"download-dir": scanDownloadDir,
		"timezone":     scanTimezone,
		"window-end":   scanWindowEnd,
		"concurrent":   scanConcurrent,
		"rate-limit":   scanRateLimit,
		"log-level":    logLevel,
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logging", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()

	session, err := buildSession(cfg, log)
	if err != nil {
		ui.PrintError("Authentication required", err.Error())
		ui.PrintInfo("Hint", "run 'ringhist auth login' or set RINGHIST_REFRESH_TOKEN")
		os.Exit(1)
	}

	scan, err := scanner.New(cfg, session, log)
	if err != nil {
		ui.PrintError("Failed to initialize scanner", err.Error())
		os.Exit(1)
	}

	if scanResetResume {
		if err := scan.ResetCheckpoints(); err != nil {
			ui.PrintError("Failed to reset resume state", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Resume state cleared")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintInfo("Window", "00:00-"+cfg.Scan.WindowEnd+" "+cfg.Scan.Timezone)
	ui.PrintInfo("Download directory", cfg.Download.Directory)

	summary, err := scan.Run(ctx, scanResume)
	if err != nil {
		ui.PrintError("Scan failed", err.Error())
		os.Exit(1)
	}

	ui.PrintSummary(summary)

	// Download failures are reported in the summary but do not fail the run
	if summary.TotalFailed() > 0 {
		ui.PrintWarning("Some downloads failed; rerun to retry them")
	}
}

// buildSession wires the authenticated API client
func buildSession(cfg *config.Config, log logger.Logger) (*ring.Client, error) {
	authenticator := auth.NewAuthenticator(cfg.Ring.UserAgent, log)

	var token *auth.Token
	if cfg.Ring.RefreshToken != "" {
		token = &auth.Token{Email: "default", RefreshToken: cfg.Ring.RefreshToken}
	} else {
		manager, err := auth.NewManager()
		if err != nil {
			return nil, err
		}
		token, err = manager.RetrieveDefault()
		if err != nil {
			return nil, err
		}
	}

	var manager *auth.Manager
	if m, err := auth.NewManager(); err == nil {
		manager = m
	}

	tokens := auth.NewSessionTokenSource(token, authenticator, manager, log)
	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)

	return ring.NewClient(tokens, limiter, cfg.Ring.UserAgent, log), nil
}
