package state

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/zsprackett/flowcontrol/internal/api"
	"github.com/zsprackett/flowcontrol/internal/events"
)

// DefaultRefreshInterval is the admin auto-refresh period.
const DefaultRefreshInterval = 5 * time.Second

type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
)

// Alert is a dashboard alert plus its local dismissed flag.
type Alert struct {
	api.Alert
	Dismissed bool
}

func (a Alert) clone() Alert {
	a.Recommendations = slices.Clone(a.Recommendations)
	return a
}

// SortedRecommendations returns the alert's recommendations, lowest priority
// value first. Equal priorities keep their original order.
func SortedRecommendations(a api.Alert) []api.Recommendation {
	out := slices.Clone(a.Recommendations)
	slices.SortStableFunc(out, func(x, y api.Recommendation) int { return x.Priority - y.Priority })
	return out
}

// StationPatch is a partial update for one station. Nil fields are left alone.
type StationPatch struct {
	QueueLength        *int
	AverageWaitMinutes *float64
	ThroughputPerHour  *float64
	Status             *api.StationStatus
	ActiveStaff        *int
}

// DashboardView is a point-in-time copy of a Dashboard container.
type DashboardView struct {
	Stations        []api.StationMetrics
	Alerts          []Alert
	Bottlenecks     []string
	Connected       bool
	AutoRefresh     bool
	RefreshInterval time.Duration
	LastRefresh     time.Time
	SelectedStation string
	ShowDismissed   bool
	MetricsSummary  *api.MetricsSummary
	DailyReport     *api.DailyReport
	Loading         bool
	Err             string
}

func (v DashboardView) TotalPatients() int {
	total := 0
	for _, s := range v.Stations {
		total += s.QueueLength
	}
	return total
}

// AverageWait is the mean station wait rounded half-up, 0 with no stations.
func (v DashboardView) AverageWait() int {
	if len(v.Stations) == 0 {
		return 0
	}
	var sum float64
	for _, s := range v.Stations {
		sum += s.AverageWaitMinutes
	}
	return int(math.Floor(sum/float64(len(v.Stations)) + 0.5))
}

func (v DashboardView) CriticalCount() int {
	return v.countStatus(api.StationCritical)
}

func (v DashboardView) countStatus(status api.StationStatus) int {
	n := 0
	for _, s := range v.Stations {
		if s.Status == status {
			n++
		}
	}
	return n
}

// SystemHealth is critical if any station is critical, warning if more than
// one station is in warning, healthy otherwise.
func (v DashboardView) SystemHealth() Health {
	switch {
	case v.CriticalCount() > 0:
		return HealthCritical
	case v.countStatus(api.StationWarning) > 1:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// VisibleAlerts honours the show-dismissed toggle.
func (v DashboardView) VisibleAlerts() []Alert {
	if v.ShowDismissed {
		return v.Alerts
	}
	return v.ActiveAlerts()
}

func (v DashboardView) ActiveAlerts() []Alert {
	var out []Alert
	for _, a := range v.Alerts {
		if !a.Dismissed {
			out = append(out, a)
		}
	}
	return out
}

// CriticalAlerts are the active alerts with critical severity.
func (v DashboardView) CriticalAlerts() []Alert {
	var out []Alert
	for _, a := range v.ActiveAlerts() {
		if a.Severity == string(events.SeverityCritical) {
			out = append(out, a)
		}
	}
	return out
}

func (v DashboardView) IsBottleneck(station string) bool {
	return slices.Contains(v.Bottlenecks, station)
}

func (v DashboardView) Station(name string) (api.StationMetrics, bool) {
	i := slices.IndexFunc(v.Stations, func(s api.StationMetrics) bool { return s.Station == name })
	if i < 0 {
		return api.StationMetrics{}, false
	}
	return v.Stations[i], true
}

// Dashboard is the admin-side container.
type Dashboard struct {
	mu       sync.Mutex
	now      func() time.Time
	v        DashboardView
	cleared  map[string]struct{}
	onChange listeners
}

// NewDashboard builds an empty dashboard with auto-refresh enabled.
func NewDashboard(opts ...Option) *Dashboard {
	o := buildOptions(opts)
	return &Dashboard{
		now:     o.now,
		v:       DashboardView{AutoRefresh: true, RefreshInterval: DefaultRefreshInterval},
		cleared: make(map[string]struct{}),
	}
}

// OnChange registers fn to run after every mutation that changed the container.
func (d *Dashboard) OnChange(fn func()) {
	d.mu.Lock()
	d.onChange = append(d.onChange, fn)
	d.mu.Unlock()
}

func (d *Dashboard) update(fn func() bool) {
	d.mu.Lock()
	changed := fn()
	l := d.onChange
	d.mu.Unlock()
	if changed {
		l.fire()
	}
}

// SetStations replaces the station table, stamps lastRefresh and clears the error.
func (d *Dashboard) SetStations(list []api.StationMetrics) {
	d.update(func() bool {
		d.v.Stations = slices.Clone(list)
		d.v.LastRefresh = d.now()
		d.v.Err = ""
		return true
	})
}

func (d *Dashboard) SetBottlenecks(list []string) {
	d.update(func() bool {
		d.v.Bottlenecks = slices.Clone(list)
		return true
	})
}

// UpdateStation patches one station. Unknown names are ignored.
func (d *Dashboard) UpdateStation(name string, patch StationPatch) {
	d.update(func() bool {
		i := slices.IndexFunc(d.v.Stations, func(s api.StationMetrics) bool { return s.Station == name })
		if i < 0 {
			return false
		}
		s := &d.v.Stations[i]
		if patch.QueueLength != nil {
			s.QueueLength = *patch.QueueLength
		}
		if patch.AverageWaitMinutes != nil {
			s.AverageWaitMinutes = *patch.AverageWaitMinutes
		}
		if patch.ThroughputPerHour != nil {
			s.ThroughputPerHour = *patch.ThroughputPerHour
		}
		if patch.Status != nil {
			s.Status = *patch.Status
		}
		if patch.ActiveStaff != nil {
			s.ActiveStaff = *patch.ActiveStaff
		}
		s.LastUpdated = d.now().UTC().Format(time.RFC3339)
		return true
	})
}

// SetAlerts merges a fetched alert feed by alert id. Known alerts get the
// fetched content but keep their dismissed flag, unknown ones are prepended in
// fetch order, and alerts the fetch no longer returns are kept. Ids removed by
// ClearDismissedAlerts stay removed while the backend keeps reporting them.
func (d *Dashboard) SetAlerts(list []api.Alert) {
	d.update(func() bool {
		var fresh []Alert
		seen := make(map[string]struct{}, len(list))
		for _, a := range list {
			seen[a.AlertID] = struct{}{}
			if _, gone := d.cleared[a.AlertID]; gone {
				continue
			}
			if i := d.indexAlert(a.AlertID); i >= 0 {
				d.v.Alerts[i] = Alert{Alert: a, Dismissed: d.v.Alerts[i].Dismissed}.clone()
				continue
			}
			if slices.ContainsFunc(fresh, func(f Alert) bool { return f.AlertID == a.AlertID }) {
				continue
			}
			fresh = append(fresh, Alert{Alert: a}.clone())
		}
		for id := range d.cleared {
			if _, ok := seen[id]; !ok {
				delete(d.cleared, id)
			}
		}
		d.v.Alerts = append(fresh, d.v.Alerts...)
		return true
	})
}

// AddAlert prepends a unless an alert with the same id is already present.
func (d *Dashboard) AddAlert(a api.Alert) {
	d.update(func() bool {
		if d.indexAlert(a.AlertID) >= 0 {
			return false
		}
		d.v.Alerts = slices.Insert(d.v.Alerts, 0, Alert{Alert: a}.clone())
		return true
	})
}

func (d *Dashboard) indexAlert(id string) int {
	return slices.IndexFunc(d.v.Alerts, func(a Alert) bool { return a.AlertID == id })
}

func (d *Dashboard) DismissAlert(id string) { d.setDismissed(id, true) }

func (d *Dashboard) UndismissAlert(id string) { d.setDismissed(id, false) }

func (d *Dashboard) setDismissed(id string, dismissed bool) {
	d.update(func() bool {
		i := d.indexAlert(id)
		if i < 0 || d.v.Alerts[i].Dismissed == dismissed {
			return false
		}
		d.v.Alerts[i].Dismissed = dismissed
		return true
	})
}

// ClearDismissedAlerts drops dismissed alerts from the feed.
func (d *Dashboard) ClearDismissedAlerts() {
	d.update(func() bool {
		if d.cleared == nil {
			d.cleared = make(map[string]struct{})
		}
		n := len(d.v.Alerts)
		d.v.Alerts = slices.DeleteFunc(d.v.Alerts, func(a Alert) bool {
			if a.Dismissed {
				d.cleared[a.AlertID] = struct{}{}
			}
			return a.Dismissed
		})
		return len(d.v.Alerts) != n
	})
}

// SetConnected drives the connectivity indicator only.
func (d *Dashboard) SetConnected(connected bool) {
	d.update(func() bool {
		changed := d.v.Connected != connected
		d.v.Connected = connected
		return changed
	})
}

func (d *Dashboard) SetAutoRefresh(enabled bool) {
	d.update(func() bool {
		changed := d.v.AutoRefresh != enabled
		d.v.AutoRefresh = enabled
		return changed
	})
}

// SetRefreshInterval ignores non-positive values.
func (d *Dashboard) SetRefreshInterval(interval time.Duration) {
	d.update(func() bool {
		if interval <= 0 || interval == d.v.RefreshInterval {
			return false
		}
		d.v.RefreshInterval = interval
		return true
	})
}

func (d *Dashboard) SetMetricsSummary(m api.MetricsSummary) {
	d.update(func() bool {
		d.v.MetricsSummary = &m
		return true
	})
}

func (d *Dashboard) SetDailyReport(r api.DailyReport) {
	d.update(func() bool {
		r.PeakHours = slices.Clone(r.PeakHours)
		d.v.DailyReport = &r
		return true
	})
}

func (d *Dashboard) SetSelectedStation(name string) {
	d.update(func() bool {
		changed := d.v.SelectedStation != name
		d.v.SelectedStation = name
		return changed
	})
}

func (d *Dashboard) SetShowDismissedAlerts(show bool) {
	d.update(func() bool {
		changed := d.v.ShowDismissed != show
		d.v.ShowDismissed = show
		return changed
	})
}

func (d *Dashboard) SetLoading(loading bool) {
	d.update(func() bool {
		changed := d.v.Loading != loading
		d.v.Loading = loading
		return changed
	})
}

func (d *Dashboard) SetError(msg string) {
	d.update(func() bool {
		changed := d.v.Err != msg
		d.v.Err = msg
		return changed
	})
}

// Reset returns the container to its freshly constructed state.
func (d *Dashboard) Reset() {
	d.update(func() bool {
		d.v = DashboardView{AutoRefresh: true, RefreshInterval: DefaultRefreshInterval}
		clear(d.cleared)
		return true
	})
}

func (d *Dashboard) AutoRefresh() (bool, time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.v.AutoRefresh, d.v.RefreshInterval
}

// Snapshot returns a deep copy safe to read without the lock.
func (d *Dashboard) Snapshot() DashboardView {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := d.v
	v.Stations = slices.Clone(d.v.Stations)
	v.Bottlenecks = slices.Clone(d.v.Bottlenecks)
	v.Alerts = make([]Alert, len(d.v.Alerts))
	for i, a := range d.v.Alerts {
		v.Alerts[i] = a.clone()
	}
	if d.v.MetricsSummary != nil {
		m := *d.v.MetricsSummary
		v.MetricsSummary = &m
	}
	if d.v.DailyReport != nil {
		r := *d.v.DailyReport
		r.PeakHours = slices.Clone(r.PeakHours)
		v.DailyReport = &r
	}
	return v
}
