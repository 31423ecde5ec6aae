package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"

	"github.com/zsprackett/flowcontrol/internal/api"
	"github.com/zsprackett/flowcontrol/internal/db"
	"github.com/zsprackett/flowcontrol/internal/state"
)

type labels struct {
	Queue    string
	Station  string
	Position string
	Wait     string
	Minutes  string
	Progress string
	Updated  string
	NoTicket string
	NoNotes  string
}

var labelSets = map[api.Language]labels{
	api.LanguageThai: {
		Queue:    "หมายเลขคิว",
		Station:  "จุดบริการ",
		Position: "ลำดับที่",
		Wait:     "เวลารอโดยประมาณ",
		Minutes:  "นาที",
		Progress: "ความคืบหน้า",
		Updated:  "อัปเดต",
		NoTicket: "ยังไม่ได้ลงทะเบียน กด c เพื่อเช็คอิน",
		NoNotes:  "ไม่มีการแจ้งเตือน",
	},
	api.LanguageEnglish: {
		Queue:    "Queue number",
		Station:  "Station",
		Position: "Position",
		Wait:     "Estimated wait",
		Minutes:  "min",
		Progress: "Progress",
		Updated:  "Updated",
		NoTicket: "Not checked in. Press c to check in.",
		NoNotes:  "No notifications",
	},
}

func labelsFor(lang api.Language) labels {
	if l, ok := labelSets[lang]; ok {
		return l
	}
	return labelSets[api.LanguageEnglish]
}

// stationLabel turns a backend station key like "blood_test" into "Blood test".
func stationLabel(name string) string {
	if name == "" {
		return "-"
	}
	s := strings.ReplaceAll(name, "_", " ")
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func progressBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	return fmt.Sprintf("[green]%s[gray]%s[-]", strings.Repeat("█", filled), strings.Repeat("░", width-filled))
}

func ticketText(v state.PatientView, now time.Time) string {
	l := labelsFor(v.Language)
	if !v.HasPatient() {
		return "\n  [yellow]" + l.NoTicket + "[-]"
	}
	p := v.Patient

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n  %s  [::b]%d[::-]   [gray]%s[-]\n\n", l.Queue, p.QueueNumber, tview.Escape(p.PatientID))
	fmt.Fprintf(&sb, "  %-18s %s\n", l.Station, tview.Escape(stationLabel(p.CurrentStation)))
	fmt.Fprintf(&sb, "  %-18s %d\n", l.Position, p.PositionInQueue)
	fmt.Fprintf(&sb, "  %-18s %d %s\n", l.Wait, p.EstimatedWaitMinutes, l.Minutes)
	if p.Complexity != nil {
		fmt.Fprintf(&sb, "  %-18s %s\n", "Complexity", tview.Escape(p.Complexity.Complexity))
	}
	fmt.Fprintf(&sb, "\n  %s %s %.0f%%\n", l.Progress, progressBar(p.OverallProgressPercent, 24), p.OverallProgressPercent)
	if !p.LastUpdated.IsZero() {
		fmt.Fprintf(&sb, "\n  [gray]%s %s[-]", l.Updated, humanize.RelTime(p.LastUpdated, now, "ago", "from now"))
	}
	if v.Err != "" {
		fmt.Fprintf(&sb, "\n  [red]%s[-]", tview.Escape(v.Err))
	}
	return sb.String()
}

func notificationsText(v state.PatientView, now time.Time) string {
	if len(v.Notifications) == 0 {
		return "  [gray]" + labelsFor(v.Language).NoNotes + "[-]"
	}
	var sb strings.Builder
	for _, n := range v.Notifications {
		color := "white"
		if n.ActionRequired {
			color = "yellow"
		}
		fmt.Fprintf(&sb, "  [%s]%s[-] [gray]%s[-]\n", color,
			tview.Escape(n.Message(string(v.Language))),
			humanize.RelTime(n.ReceivedAt, now, "ago", "from now"))
	}
	return sb.String()
}

func connectionTag(connected bool) string {
	if connected {
		return "[green]● live[-]"
	}
	return "[red]○ offline[-]"
}

func summaryText(v state.DashboardView, now time.Time) string {
	health := v.SystemHealth()
	refresh := "auto-refresh off"
	if v.AutoRefresh {
		refresh = fmt.Sprintf("auto-refresh %s", v.RefreshInterval)
	}
	last := "never"
	if !v.LastRefresh.IsZero() {
		last = humanize.RelTime(v.LastRefresh, now, "ago", "from now")
	}
	s := fmt.Sprintf(" [::b]Flow Control[::-]  %s  [%s]%s[-]  patients [::b]%d[::-]  avg wait [::b]%d[::-] min  critical [::b]%d[::-]  [gray]%s, refreshed %s[-]",
		connectionTag(v.Connected), healthTag(health), strings.ToUpper(string(health)),
		v.TotalPatients(), v.AverageWait(), v.CriticalCount(), refresh, last)
	if v.Loading {
		s += "  [yellow]⟳[-]"
	}
	return s
}

func alertsText(alerts []state.Alert) string {
	if len(alerts) == 0 {
		return "\n  [green]No active alerts[-]"
	}
	var sb strings.Builder
	for _, a := range alerts {
		tag := severityTag(a.Severity)
		if a.Dismissed {
			tag = "gray"
		}
		fmt.Fprintf(&sb, "\n [%s]■ %s[-] %s\n", tag, strings.ToUpper(tview.Escape(a.Severity)), tview.Escape(a.Message))
		for i, r := range state.SortedRecommendations(a.Alert) {
			fmt.Fprintf(&sb, "   [green]%d[-] %s", i+1, tview.Escape(r.Action))
			if r.EstimatedImpact != "" {
				fmt.Fprintf(&sb, " [gray](%s)[-]", tview.Escape(r.EstimatedImpact))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func chatText(msgs []db.ChatMessage, busy bool) string {
	var sb strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case db.RoleUser:
			fmt.Fprintf(&sb, "[blue::b]You[-::-] [gray]%s[-]\n", m.CreatedAt.Local().Format("15:04"))
		case db.RoleAssistant:
			fmt.Fprintf(&sb, "[purple::b]Supervisor[-::-] [gray]%s[-]\n", m.CreatedAt.Local().Format("15:04"))
		default:
			sb.WriteString("[gray]")
			sb.WriteString(tview.Escape(m.Content))
			sb.WriteString("[-]\n\n")
			continue
		}
		sb.WriteString(tview.Escape(m.Content))
		sb.WriteString("\n\n")
	}
	if busy {
		sb.WriteString("[yellow]Thinking...[-]\n")
	}
	return sb.String()
}
