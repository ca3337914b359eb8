package ui

import (
	"fmt"
	"time"

	"ringhist/pkg/download"
	"ringhist/pkg/scanner"
)

const summaryDurationUnit = 100 * time.Millisecond

// PrintSummary renders the scan summary grouped by local day
func PrintSummary(summary *scanner.Summary) {
	if quiet {
		return
	}

	fmt.Println()
	PrintHighlight("Scan summary")

	for _, report := range summary.Reports {
		status := fmt.Sprintf("%d events scanned, %d in window", report.EventsScanned, len(report.Hits))
		if report.Err != nil {
			status += " (incomplete)"
		}
		PrintInfo(report.Device.Name(), status)
	}

	days, byDay := summary.HitsByDay()
	if len(days) == 0 {
		fmt.Println(Dim("No events in the overnight window."))
		return
	}

	for _, day := range days {
		fmt.Println()
		fmt.Println(Cyan(day))
		for _, hit := range byDay[day] {
			line := fmt.Sprintf("  %s  %-22s %s", hit.Local.Format("15:04:05"), hit.Device, hit.Kind)
			switch hit.Outcome {
			case download.OutcomeDownloaded:
				line += Green("  saved")
			case download.OutcomeSkippedExisting:
				line += Dim("  already saved")
			case download.OutcomeSkippedNoID:
				line += Yellow("  no recording id")
			case download.OutcomeFailed:
				line += Red("  download failed")
			}
			fmt.Println(line)
		}
	}

	fmt.Println()
	totals := fmt.Sprintf("%d hits", summary.TotalHits())
	if failed := summary.TotalFailed(); failed > 0 {
		totals += Red(fmt.Sprintf(", %d downloads failed", failed))
	}
	totals += Dim(fmt.Sprintf("  (%s)", summary.Duration.Round(summaryDurationUnit)))
	fmt.Println(totals)
}
