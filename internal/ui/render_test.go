package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/zsprackett/flowcontrol/internal/api"
	"github.com/zsprackett/flowcontrol/internal/db"
	"github.com/zsprackett/flowcontrol/internal/events"
	"github.com/zsprackett/flowcontrol/internal/state"
)

func TestStationLabel(t *testing.T) {
	cases := map[string]string{
		"blood_test": "Blood test",
		"pharmacy":   "Pharmacy",
		"":           "-",
	}
	for in, want := range cases {
		if got := stationLabel(in); got != want {
			t.Errorf("stationLabel(%q): got %q want %q", in, got, want)
		}
	}
}

func TestTicketTextWithoutPatient(t *testing.T) {
	got := ticketText(state.PatientView{Language: api.LanguageEnglish}, time.Now())
	if !strings.Contains(got, "Not checked in") {
		t.Errorf("unexpected text: %q", got)
	}
}

func TestTicketTextShowsPositionAndAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := state.PatientView{
		Language: api.LanguageEnglish,
		Patient: &state.PatientQueueState{
			PatientID:            "P042",
			QueueNumber:          17,
			CurrentStation:       "pharmacy",
			PositionInQueue:      3,
			EstimatedWaitMinutes: 12,
			LastUpdated:          now.Add(-30 * time.Second),
		},
	}
	got := ticketText(v, now)
	for _, want := range []string{"17", "Pharmacy", "12 min", "30 seconds ago"} {
		if !strings.Contains(got, want) {
			t.Errorf("ticket text missing %q:\n%s", want, got)
		}
	}
}

func TestNotificationsTextUsesLanguage(t *testing.T) {
	now := time.Now()
	v := state.PatientView{
		Language: api.LanguageThai,
		Notifications: []state.Notification{{
			NotificationTrigger: events.NotificationTrigger{MessageTH: "ถึงคิวแล้ว", MessageEN: "Your turn"},
			ReceivedAt:          now,
		}},
	}
	if got := notificationsText(v, now); !strings.Contains(got, "ถึงคิวแล้ว") {
		t.Errorf("expected thai message, got %q", got)
	}
}

func TestAlertsTextOrdersRecommendations(t *testing.T) {
	got := alertsText([]state.Alert{{Alert: api.Alert{
		AlertID:  "a1",
		Station:  "lab",
		Severity: "critical",
		Message:  "Lab overloaded",
		Recommendations: []api.Recommendation{
			{Action: "second", Priority: 2},
			{Action: "first", Priority: 1},
		},
	}}})
	if strings.Index(got, "first") > strings.Index(got, "second") {
		t.Errorf("recommendations not sorted:\n%s", got)
	}
	if !strings.Contains(got, "[red]") {
		t.Errorf("critical alert should be red:\n%s", got)
	}
}

func TestSummaryTextTotals(t *testing.T) {
	v := state.DashboardView{
		Stations: []api.StationMetrics{
			{Station: "pharmacy", QueueLength: 10, AverageWaitMinutes: 10, Status: api.StationNormal},
			{Station: "lab", QueueLength: 15, AverageWaitMinutes: 21, Status: api.StationCritical},
		},
	}
	got := summaryText(v, time.Now())
	if !strings.Contains(got, "patients [::b]25") || !strings.Contains(got, "critical [::b]1") {
		t.Errorf("unexpected summary: %q", got)
	}
	if !strings.Contains(got, "refreshed never") {
		t.Errorf("expected never-refreshed marker: %q", got)
	}
}

func TestChatTextEscapesContent(t *testing.T) {
	got := chatText([]db.ChatMessage{{Role: db.RoleUser, Content: "[red]hi", CreatedAt: time.Now()}}, true)
	if strings.Contains(got, "\n[red]hi") {
		t.Errorf("content should be escaped: %q", got)
	}
	if !strings.Contains(got, "Thinking") {
		t.Error("busy marker missing")
	}
}
