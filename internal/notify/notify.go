package notify

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zsprackett/flowcontrol/internal/events"
)

// Config holds notification settings.
type Config struct {
	Enabled bool   `json:"enabled"`
	Desktop bool   `json:"desktop"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

// Notifier forwards patient notifications and critical bottlenecks to the
// desktop, a webhook and an ntfy topic. Delivery failures are logged only.
type Notifier struct {
	cfg    Config
	http   *resty.Client
	logger *slog.Logger
	lang   string
}

// New returns a Notifier. lang selects the message_th/message_en text.
func New(cfg Config, lang string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		cfg:    cfg,
		http:   resty.New().SetTimeout(5 * time.Second),
		logger: logger,
		lang:   lang,
	}
}

type message struct {
	title    string
	body     string
	kind     string
	station  string
	patient  string
	priority int
	tags     []string
}

// NotifyPatient delivers a notification_trigger addressed to this patient.
func (n *Notifier) NotifyPatient(e events.NotificationTrigger) {
	m := message{
		title:    "Queue update",
		body:     e.Message(n.lang),
		kind:     string(e.NotificationType),
		patient:  e.PatientID,
		priority: 3,
		tags:     []string{"hospital"},
	}
	if e.NotificationType == events.NotificationReady || e.ActionRequired {
		m.title = "Your turn"
		m.priority = 5
		m.tags = append(m.tags, "bell")
	}
	n.send(m)
}

// NotifyBottleneck delivers critical bottlenecks. Other severities are ignored.
func (n *Notifier) NotifyBottleneck(e events.BottleneckDetected) {
	if e.Severity != events.SeverityCritical {
		return
	}
	body := e.Message
	if body == "" {
		body = fmt.Sprintf("%d waiting, average wait %.0f min", e.QueueLength, e.AverageWait)
	}
	n.send(message{
		title:    fmt.Sprintf("Critical bottleneck at %s", e.Station),
		body:     body,
		kind:     string(events.TypeBottleneckDetected),
		station:  e.Station,
		priority: 5,
		tags:     []string{"rotating_light"},
	})
}

func (n *Notifier) send(m message) {
	if !n.cfg.Enabled {
		return
	}
	if n.cfg.Desktop {
		n.sendDesktop(m)
	}
	if n.cfg.Webhook != "" {
		n.sendWebhook(m)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(m)
	}
}

func (n *Notifier) sendDesktop(m message) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, m.body, m.title)
		cmd = exec.Command("osascript", "-e", script)
	case "linux":
		cmd = exec.Command("notify-send", "--app-name=flowcontrol", m.title, m.body)
	default:
		return
	}
	if err := cmd.Run(); err != nil {
		n.logger.Debug("desktop notification failed", "err", err)
	}
}

type webhookPayload struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	Kind      string `json:"kind"`
	Station   string `json:"station,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (n *Notifier) sendWebhook(m message) {
	resp, err := n.http.R().
		SetBody(webhookPayload{
			Title:     m.title,
			Message:   m.body,
			Kind:      m.kind,
			Station:   m.station,
			PatientID: m.patient,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}).
		Post(n.cfg.Webhook)
	if err != nil {
		n.logger.Warn("webhook notification failed", "err", err)
		return
	}
	if resp.IsError() {
		n.logger.Warn("webhook notification rejected", "status", resp.StatusCode())
	}
}

type ntfyPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(m message) {
	resp, err := n.http.R().
		SetBody(ntfyPayload{Title: m.title, Message: m.body, Priority: m.priority, Tags: m.tags}).
		Post(n.cfg.NtfyURL)
	if err != nil {
		n.logger.Warn("ntfy notification failed", "err", err)
		return
	}
	if resp.IsError() {
		n.logger.Warn("ntfy notification rejected", "status", resp.StatusCode())
	}
}
