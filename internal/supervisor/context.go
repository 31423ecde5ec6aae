package supervisor

import (
	"time"

	"github.com/zsprackett/flowcontrol/internal/api"
	"github.com/zsprackett/flowcontrol/internal/state"
)

// BuildContext summarises a dashboard snapshot for the supervisor. Only
// active alerts are included.
func BuildContext(v state.DashboardView, now time.Time) api.SupervisorContext {
	c := api.SupervisorContext{
		Timestamp:   now.UTC().Format(time.RFC3339),
		Stations:    make([]api.SupervisorStation, 0, len(v.Stations)),
		Alerts:      []api.SupervisorAlert{},
		Bottlenecks: append([]string{}, v.Bottlenecks...),
		Summary: api.SupervisorSummary{
			TotalPatients:    v.TotalPatients(),
			CriticalStations: v.CriticalCount(),
			AverageWait:      v.AverageWait(),
		},
	}
	for _, s := range v.Stations {
		c.Stations = append(c.Stations, api.SupervisorStation{
			Name:        s.Station,
			QueueLength: s.QueueLength,
			AverageWait: s.AverageWaitMinutes,
			Status:      s.Status,
			Throughput:  s.ThroughputPerHour,
		})
	}
	for _, a := range v.ActiveAlerts() {
		c.Alerts = append(c.Alerts, api.SupervisorAlert{Station: a.Station, Severity: a.Severity, Message: a.Message})
	}
	return c
}
