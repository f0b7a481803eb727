package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/eliteGoblin/enough/internal/config"
	"github.com/eliteGoblin/enough/internal/domain"
)

type statusJSON struct {
	ProfileName string    `json:"profile_name"`
	UnblockTime time.Time `json:"unblock_time"`
}

// remaining rounds the time left down to whole seconds, never below zero.
func remaining(status domain.Status, now time.Time) time.Duration {
	left := status.Remaining(now).Truncate(time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// writeStatus prints the multi-line status shown by `enough status`. verbose
// adds the blocked websites and the scheduled unit.
func writeStatus(w io.Writer, status domain.Status, now time.Time, verbose bool) {
	if !status.IsBlocked() {
		fmt.Fprintln(w, "No active block is running")
		return
	}
	fmt.Fprintf(w, "Active block (profile: %s)\n", status.ProfileName)
	fmt.Fprintf(w, "• %d apps blocked\n", len(status.Profile.Apps))
	fmt.Fprintf(w, "• %d websites blocked\n", len(status.Profile.Websites))
	if left := remaining(status, now); left > 0 {
		fmt.Fprintf(w, "• Time remaining: %s (unblocks %s)\n",
			config.FormatDuration(left), status.UnblockTime.Local().Format("15:04:05"))
	} else {
		fmt.Fprintf(w, "• Unblock overdue since %s, waiting for the scheduled unit\n",
			humanize.Time(status.UnblockTime))
	}
	if !verbose {
		return
	}
	for _, website := range status.Profile.Websites {
		fmt.Fprintf(w, "  - %s\n", website)
	}
	if status.UnitID == "" {
		fmt.Fprintf(w, "• Unblock unit: missing (%s); run `sudo enough %s %s` once the time is up\n",
			status.Scheduler, domain.UnblockCommand, domain.UnblockFixFlag)
	} else {
		fmt.Fprintf(w, "• Unblock unit: %s (%s)\n", status.UnitID, status.Scheduler)
	}
}

// writeStatusJSON prints the record as JSON; nothing when unblocked.
func writeStatusJSON(w io.Writer, status domain.Status) error {
	if !status.IsBlocked() {
		return nil
	}
	data, err := json.Marshal(statusJSON{
		ProfileName: status.ProfileName,
		UnblockTime: status.UnblockTime.Local(),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// statusLine is the single line for status bars, without trailing newline.
func statusLine(status domain.Status, now time.Time) string {
	if !status.IsBlocked() {
		return "🟢 Unblocked"
	}
	return fmt.Sprintf("🔴 %s (%s)", status.ProfileName, config.FormatDuration(remaining(status, now)))
}

// writeHistory prints journal entries newest first.
func writeHistory(w io.Writer, entries []domain.HistoryEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No blocks recorded yet")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tEVENT\tPROFILE\tWEBSITES\tUNBLOCK TIME")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			humanize.Time(e.RecordedAt),
			strings.ReplaceAll(string(e.Event), "_", " "),
			e.ProfileName,
			e.Websites,
			e.UnblockTime.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
