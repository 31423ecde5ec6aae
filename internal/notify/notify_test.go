package notify_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zsprackett/flowcontrol/internal/events"
	"github.com/zsprackett/flowcontrol/internal/notify"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func capture(t *testing.T) (*httptest.Server, chan map[string]any) {
	t.Helper()
	got := make(chan map[string]any, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		got <- body
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestNtfyPatientNotification(t *testing.T) {
	srv, got := capture(t)
	n := notify.New(notify.Config{Enabled: true, NtfyURL: srv.URL + "/ward-7"}, "en", discardLogger())

	n.NotifyPatient(events.NotificationTrigger{
		PatientID:        "P042",
		NotificationType: events.NotificationReady,
		MessageTH:        "ถึงคิวของคุณแล้ว",
		MessageEN:        "Please proceed to pharmacy",
		ActionRequired:   true,
	})

	if len(got) != 1 {
		t.Fatalf("expected one POST, got %d", len(got))
	}
	body := <-got
	if body["title"] != "Your turn" || body["message"] != "Please proceed to pharmacy" {
		t.Errorf("unexpected payload: %v", body)
	}
	if body["priority"] != float64(5) {
		t.Errorf("priority: %v", body["priority"])
	}
}

func TestWebhookCriticalBottleneckOnly(t *testing.T) {
	srv, got := capture(t)
	n := notify.New(notify.Config{Enabled: true, Webhook: srv.URL}, "th", discardLogger())

	n.NotifyBottleneck(events.BottleneckDetected{Station: "lab", Severity: events.SeverityWarning})
	n.NotifyBottleneck(events.BottleneckDetected{Station: "pharmacy", Severity: events.SeverityCritical, QueueLength: 20, AverageWait: 31})

	if len(got) != 1 {
		t.Fatalf("expected only the critical bottleneck, got %d posts", len(got))
	}
	body := <-got
	if body["station"] != "pharmacy" || body["kind"] != "bottleneck_detected" {
		t.Errorf("unexpected payload: %v", body)
	}
	if body["message"] != "20 waiting, average wait 31 min" {
		t.Errorf("message: %v", body["message"])
	}
}

func TestWebhookErrorLogged(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Nothing listens on port 1.
	n := notify.New(notify.Config{Enabled: true, Webhook: "http://127.0.0.1:1"}, "en", logger)
	n.NotifyPatient(events.NotificationTrigger{MessageEN: "test"})

	if !strings.Contains(buf.String(), "webhook") {
		t.Errorf("expected warn log mentioning webhook, got: %q", buf.String())
	}
}

func TestDisabledNoOp(t *testing.T) {
	srv, got := capture(t)
	n := notify.New(notify.Config{Enabled: false, Webhook: srv.URL}, "en", discardLogger())
	n.NotifyPatient(events.NotificationTrigger{MessageEN: "test"})
	if len(got) != 0 {
		t.Error("disabled notifier posted")
	}
}
