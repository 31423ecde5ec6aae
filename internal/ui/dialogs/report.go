package dialogs

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/flowcontrol/internal/api"
)

// ReportDialog shows the daily report and the metrics summary.
type ReportDialog struct {
	*tview.TextView
	onClose func()
}

// NewReportDialog creates an empty report dialog. onRefresh is called when
// the user presses R; it should reload the data and then call Show.
func NewReportDialog(onClose func(), onRefresh func()) *ReportDialog {
	d := &ReportDialog{TextView: tview.NewTextView(), onClose: onClose}
	d.SetBorder(true).SetTitle(" Daily Report ").SetTitleAlign(tview.AlignLeft)
	d.SetDynamicColors(true)
	d.SetScrollable(true)
	d.SetBackgroundColor(tcell.ColorDefault)

	d.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape, event.Rune() == 'q', event.Rune() == 'Q':
			onClose()
			return nil
		case event.Rune() == 'r', event.Rune() == 'R':
			d.SetText(d.GetText(false) + "\n\n  [yellow]Refreshing...[-]")
			go onRefresh()
			return nil
		}
		return event
	})

	d.SetText(ReportText(nil, nil))
	return d
}

// Show redraws the dialog. Call it on the UI goroutine.
func (d *ReportDialog) Show(report *api.DailyReport, summary *api.MetricsSummary) {
	d.SetText(ReportText(report, summary))
	d.ScrollToBeginning()
}

// ReportText renders report and summary; either may be nil.
func ReportText(report *api.DailyReport, summary *api.MetricsSummary) string {
	var sb strings.Builder

	if report == nil && summary == nil {
		sb.WriteString("\n  [yellow]No report loaded yet.[-]\n\n")
		sb.WriteString("  Press [green]R[-] to fetch today's report.\n")
		sb.WriteString("\n  [gray]Press Q or Esc to close.[-]")
		return sb.String()
	}

	sb.WriteString("\n")
	if summary != nil {
		sb.WriteString("  [yellow]Right Now[-]\n")
		fmt.Fprintf(&sb, "  Patients in queue   %s\n", humanize.Comma(int64(summary.TotalPatientsInQueue)))
		fmt.Fprintf(&sb, "  Average wait        %.1f min\n", summary.AverageWaitTimeMinutes)
		fmt.Fprintf(&sb, "  Active bottlenecks  %d\n", summary.ActiveBottlenecks)
		fmt.Fprintf(&sb, "  Throughput today    %s\n", humanize.Comma(int64(summary.ThroughputToday)))
		fmt.Fprintf(&sb, "  Satisfaction        %s\n", scoreText(summary.PatientSatisfaction))
		if summary.SystemHealth != "" {
			fmt.Fprintf(&sb, "  System health       %s\n", tview.Escape(summary.SystemHealth))
		}
		sb.WriteString("\n")
	}

	if report != nil {
		fmt.Fprintf(&sb, "  [yellow]Report %s[-]\n", tview.Escape(report.ReportDate))
		fmt.Fprintf(&sb, "  Total patients      %s\n", humanize.Comma(int64(report.TotalPatients)))
		fmt.Fprintf(&sb, "  Average wait        %.1f min\n", report.AverageWaitTimeMinutes)
		fmt.Fprintf(&sb, "  Average journey     %.1f min\n", report.AverageJourneyTimeMinutes)
		if report.PatientSatisfactionScore != nil {
			fmt.Fprintf(&sb, "  Satisfaction        %s\n", scoreText(*report.PatientSatisfactionScore))
		}
		if len(report.PeakHours) > 0 {
			hours := make([]string, len(report.PeakHours))
			for i, h := range report.PeakHours {
				hours[i] = fmt.Sprintf("%02d:00", h)
			}
			fmt.Fprintf(&sb, "  Peak hours          %s\n", strings.Join(hours, ", "))
		}
		sb.WriteString("\n")

		if len(report.BottleneckSummary) > 0 {
			sb.WriteString("  [yellow]Bottlenecks by station[-]\n")
			stations := slices.Collect(maps.Keys(report.BottleneckSummary))
			slices.SortFunc(stations, func(a, b string) int {
				if c := cmp.Compare(report.BottleneckSummary[b], report.BottleneckSummary[a]); c != 0 {
					return c
				}
				return cmp.Compare(a, b)
			})
			peak := report.BottleneckSummary[stations[0]]
			for _, s := range stations {
				n := report.BottleneckSummary[s]
				fmt.Fprintf(&sb, "  %-14s %s %d\n", tview.Escape(s), bar(n, peak, 20), n)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("  [green]R[-] refresh  [green]Q/Esc[-] close")
	return sb.String()
}

// scoreText colors a 0-5 satisfaction score.
func scoreText(score float64) string {
	color := "green"
	if score < 3 {
		color = "red"
	} else if score < 4 {
		color = "yellow"
	}
	return fmt.Sprintf("[%s]%.1f / 5[-]", color, score)
}

func bar(n, peak, width int) string {
	if peak <= 0 {
		return strings.Repeat("░", width)
	}
	filled := n * width / peak
	return "[red]" + strings.Repeat("█", filled) + "[gray]" + strings.Repeat("░", width-filled) + "[-]"
}
