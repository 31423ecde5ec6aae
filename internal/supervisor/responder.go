package supervisor

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/zsprackett/flowcontrol/internal/api"
)

type Reply struct {
	Text    string
	Actions []map[string]any
}

// Responder answers one question given the current hospital context.
type Responder interface {
	Respond(ctx context.Context, question string, hc api.SupervisorContext) (Reply, error)
}

type chatAPI interface {
	SupervisorChat(ctx context.Context, req api.SupervisorRequest) (*api.SupervisorResponse, error)
}

// RemoteResponder forwards questions to the backend supervisor agent.
type RemoteResponder struct {
	API chatAPI
}

func (r RemoteResponder) Respond(ctx context.Context, question string, hc api.SupervisorContext) (Reply, error) {
	resp, err := r.API.SupervisorChat(ctx, api.SupervisorRequest{Message: question, Context: hc})
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: resp.Response, Actions: resp.Actions}, nil
}

// Fallback tries Primary and answers from Secondary when it fails.
type Fallback struct {
	Primary   Responder
	Secondary Responder
	Logger    *slog.Logger
}

func (f Fallback) Respond(ctx context.Context, question string, hc api.SupervisorContext) (Reply, error) {
	reply, err := f.Primary.Respond(ctx, question, hc)
	if err == nil {
		return reply, nil
	}
	if f.Logger != nil {
		f.Logger.Warn("supervisor unavailable, answering locally", "err", err)
	}
	return f.Secondary.Respond(ctx, question, hc)
}

// RuleResponder answers the common questions straight from the context.
type RuleResponder struct{}

const helpText = `I can help you analyze patient flow, identify bottlenecks and recommend actions.

Try asking:
• "What are the current bottlenecks?"
• "How can we reduce wait times?"
• "Which stations need more staff?"
• "Give me a summary"`

func (RuleResponder) Respond(_ context.Context, question string, hc api.SupervisorContext) (Reply, error) {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "bottleneck"):
		return Reply{Text: bottleneckAnswer(hc)}, nil
	case strings.Contains(q, "wait"):
		return Reply{Text: waitAnswer(hc)}, nil
	case strings.Contains(q, "staff"):
		return Reply{Text: staffAnswer(hc)}, nil
	case strings.Contains(q, "summary"), strings.Contains(q, "status"), strings.Contains(q, "overview"):
		return Reply{Text: summaryAnswer(hc)}, nil
	default:
		return Reply{Text: helpText}, nil
	}
}

// congested returns critical and warning stations, busiest first.
func congested(hc api.SupervisorContext) []api.SupervisorStation {
	var out []api.SupervisorStation
	for _, s := range hc.Stations {
		if s.Status == api.StationCritical || s.Status == api.StationWarning || slices.Contains(hc.Bottlenecks, s.Name) {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b api.SupervisorStation) int {
		return cmp.Compare(b.QueueLength, a.QueueLength)
	})
	return out
}

func bottleneckAnswer(hc api.SupervisorContext) string {
	busy := congested(hc)
	if len(busy) == 0 {
		return "No bottlenecks right now. All stations are flowing normally."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d station(s) need attention:\n", len(busy))
	for _, s := range busy {
		fmt.Fprintf(&b, "• %s: %d waiting, avg %.0f min (%s)\n", s.Name, s.QueueLength, s.AverageWait, s.Status)
	}
	for _, a := range hc.Alerts {
		if a.Severity == "critical" {
			fmt.Fprintf(&b, "Critical alert at %s: %s\n", a.Station, a.Message)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func waitAnswer(hc api.SupervisorContext) string {
	if len(hc.Stations) == 0 {
		return "No station data yet. Refresh the dashboard and ask again."
	}
	slowest := slices.MaxFunc(hc.Stations, func(a, b api.SupervisorStation) int {
		return cmp.Compare(a.AverageWait, b.AverageWait)
	})
	var b strings.Builder
	fmt.Fprintf(&b, "Average wait across stations is %d min. The longest wait is at %s (%.0f min, %d waiting).",
		hc.Summary.AverageWait, slowest.Name, slowest.AverageWait, slowest.QueueLength)
	if slowest.Throughput > 0 {
		fmt.Fprintf(&b, "\nIt clears about %.0f patients per hour; adding a counter or rerouting non-urgent patients there will cut the wait fastest.", slowest.Throughput)
	} else {
		b.WriteString("\nAdding a counter or rerouting non-urgent patients there will cut the wait fastest.")
	}
	return b.String()
}

func staffAnswer(hc api.SupervisorContext) string {
	busy := congested(hc)
	if len(busy) == 0 {
		return "Staffing looks adequate. No station is in warning or critical state."
	}
	names := make([]string, len(busy))
	for i, s := range busy {
		names[i] = fmt.Sprintf("%s (%d waiting)", s.Name, s.QueueLength)
	}
	return "Consider moving staff to: " + strings.Join(names, ", ") + "."
}

func summaryAnswer(hc api.SupervisorContext) string {
	return fmt.Sprintf("%d patients in the system across %d stations. %d critical station(s), %d active alert(s), average wait %d min.",
		hc.Summary.TotalPatients, len(hc.Stations), hc.Summary.CriticalStations, len(hc.Alerts), hc.Summary.AverageWait)
}
