// ABOUTME: Display formatting for file records
// ABOUTME: Sizes in kilobytes with two decimals, dates as calendar days

package view

import (
	"fmt"
	"time"

	"github.com/AsafNachman/file-management-system/internal/client"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

// FormatSize renders bytes as kilobytes, e.g. 2048 -> "2.00 KB"
func FormatSize(size int64) string {
	return fmt.Sprintf("%.2f KB", float64(size)/1024)
}

// FormatDate renders the upload date as a local calendar day
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}

// RelativeDate renders t relative to now, e.g. "3 days ago"
func RelativeDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}

// TotalSize sums the sizes of files in human units
func TotalSize(files []client.FileRecord) string {
	total := lo.SumBy(files, func(f client.FileRecord) int64 { return f.Size })
	return humanize.IBytes(uint64(total))
}
