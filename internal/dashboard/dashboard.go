// Package dashboard drives the admin side: periodic refresh of the station
// table and alert feed, bottleneck simulation and the admin push subscription.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zsprackett/flowcontrol/internal/api"
	"github.com/zsprackett/flowcontrol/internal/events"
	"github.com/zsprackett/flowcontrol/internal/push"
	"github.com/zsprackett/flowcontrol/internal/state"
)

// ClientID is the admin dashboard's push-channel identity.
var ClientID = push.AdminClientID("dashboard")

var ErrUnknownAlert = errors.New("unknown alert")

type API interface {
	Realtime(ctx context.Context) (*api.RealtimeResponse, error)
	Alerts(ctx context.Context) (*api.AlertsResponse, error)
	DailyReport(ctx context.Context) (*api.DailyReport, error)
	MetricsSummary(ctx context.Context) (*api.MetricsSummary, error)
	SimulateBottleneck(ctx context.Context, station string, increase int) (api.SimulationResult, error)
	ResolveBottleneck(ctx context.Context, station string, decrease int) (api.SimulationResult, error)
}

type Store interface {
	InsertEvent(clientID, eventType, payload string) error
}

type Notifier interface {
	NotifyBottleneck(e events.BottleneckDetected)
}

type Config struct {
	API              API
	Store            Store
	Notifier         Notifier
	Push             push.Config
	PushOptions      push.Options
	SimulateIncrease int
	ResolveDecrease  int
	Logger           *slog.Logger
	// Clock stamps detected_at on pushed alerts. Defaults to time.Now.
	Clock func() time.Time
}

type Flow struct {
	state    *state.Dashboard
	api      API
	store    Store
	notifier Notifier
	pushCfg  push.Config
	pushOpts push.Options
	increase int
	decrease int
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	ctx      context.Context
	poller   *poller
	client   *push.Client
	inflight sync.WaitGroup
}

// New wires an admin flow around st. Store and Notifier may be nil.
func New(st *state.Dashboard, cfg Config) *Flow {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pushCfg := cfg.Push
	if pushCfg.Logger == nil {
		pushCfg.Logger = logger
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Flow{
		state:    st,
		api:      cfg.API,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		pushCfg:  pushCfg,
		pushOpts: cfg.PushOptions,
		increase: cfg.SimulateIncrease,
		decrease: cfg.ResolveDecrease,
		logger:   logger,
		now:      now,
		ctx:      context.Background(),
	}
}

func (f *Flow) State() *state.Dashboard { return f.state }

// Refresh fetches the realtime table and the alert feed concurrently. Any
// failure leaves the container untouched apart from its error field.
func (f *Flow) Refresh(ctx context.Context) error {
	f.state.SetLoading(true)
	defer f.state.SetLoading(false)

	var (
		rt     *api.RealtimeResponse
		alerts *api.AlertsResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rt, err = f.api.Realtime(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		alerts, err = f.api.Alerts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		f.logger.Warn("dashboard refresh failed", "err", err)
		f.state.SetError(api.ErrorText(err))
		return fmt.Errorf("refresh dashboard: %w", err)
	}

	f.state.SetStations(rt.Stations)
	f.state.SetBottlenecks(rt.Bottlenecks)
	f.state.SetAlerts(alerts.Alerts)
	return nil
}

// Start performs an initial refresh and starts the poller when auto-refresh
// is enabled. ctx bounds every fetch the poller issues.
func (f *Flow) Start(ctx context.Context) {
	f.mu.Lock()
	f.ctx = ctx
	f.mu.Unlock()

	f.spawnRefresh()
	if on, _ := f.state.AutoRefresh(); on {
		f.startPoller()
	}
}

// SetAutoRefresh toggles the container flag and starts or stops the poller.
func (f *Flow) SetAutoRefresh(enabled bool) {
	f.state.SetAutoRefresh(enabled)
	if enabled {
		f.startPoller()
	} else {
		f.stopPoller()
	}
}

// SetRefreshInterval changes the poll period, restarting a running poller.
func (f *Flow) SetRefreshInterval(d time.Duration) {
	f.state.SetRefreshInterval(d)
	f.mu.Lock()
	running := f.poller != nil
	f.mu.Unlock()
	if running {
		f.stopPoller()
		f.startPoller()
	}
}

func (f *Flow) startPoller() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.poller != nil {
		return
	}
	_, every := f.state.AutoRefresh()
	f.poller = startPoller(every, f.spawnRefresh)
	f.logger.Debug("auto-refresh started", "interval", every)
}

func (f *Flow) stopPoller() {
	f.mu.Lock()
	p := f.poller
	f.poller = nil
	f.mu.Unlock()
	if p != nil {
		p.Stop()
		f.logger.Debug("auto-refresh stopped")
	}
}

// spawnRefresh issues a refresh without waiting for it.
func (f *Flow) spawnRefresh() {
	f.mu.Lock()
	ctx := f.ctx
	f.mu.Unlock()
	f.inflight.Add(1)
	go func() {
		defer f.inflight.Done()
		f.Refresh(ctx)
	}()
}

func (f *Flow) SimulateBottleneck(ctx context.Context, station string) error {
	if _, err := f.api.SimulateBottleneck(ctx, station, f.increase); err != nil {
		f.logger.Warn("simulate bottleneck failed", "station", station, "err", err)
		f.state.SetError(api.ErrorText(err))
		return fmt.Errorf("simulate bottleneck at %s: %w", station, err)
	}
	f.logger.Info("simulated bottleneck", "station", station)
	return f.Refresh(ctx)
}

func (f *Flow) ResolveBottleneck(ctx context.Context, station string) error {
	if _, err := f.api.ResolveBottleneck(ctx, station, f.decrease); err != nil {
		f.logger.Warn("resolve bottleneck failed", "station", station, "err", err)
		f.state.SetError(api.ErrorText(err))
		return fmt.Errorf("resolve bottleneck at %s: %w", station, err)
	}
	f.logger.Info("resolved bottleneck", "station", station)
	return f.Refresh(ctx)
}

// ApplyAction acknowledges recommendation idx of an alert by dismissing the
// alert. The backend has no endpoint to apply it.
func (f *Flow) ApplyAction(alertID string, idx int) (api.Recommendation, error) {
	v := f.state.Snapshot()
	for _, a := range v.Alerts {
		if a.AlertID != alertID {
			continue
		}
		recs := state.SortedRecommendations(a.Alert)
		if idx < 0 || idx >= len(recs) {
			return api.Recommendation{}, fmt.Errorf("alert %s has no action %d", alertID, idx)
		}
		f.logger.Info("applying action", "alert", alertID, "action", recs[idx].Action)
		f.state.DismissAlert(alertID)
		return recs[idx], nil
	}
	return api.Recommendation{}, fmt.Errorf("%w: %s", ErrUnknownAlert, alertID)
}

// LoadReport fetches the daily report and the metrics summary.
func (f *Flow) LoadReport(ctx context.Context) error {
	var (
		report  *api.DailyReport
		summary *api.MetricsSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report, err = f.api.DailyReport(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = f.api.MetricsSummary(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		f.logger.Warn("load report failed", "err", err)
		f.state.SetError(api.ErrorText(err))
		return fmt.Errorf("load report: %w", err)
	}
	f.state.SetDailyReport(*report)
	f.state.SetMetricsSummary(*summary)
	return nil
}

// Subscribe opens the admin push connection, replacing any existing one.
// Callbacks still queued by a replaced client are dropped.
func (f *Flow) Subscribe(ctx context.Context) *push.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		f.client.Disconnect()
	}
	var c *push.Client
	live := func(fn func()) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.client == c {
			fn()
		}
	}
	c = push.Connect(ctx, f.pushCfg, ClientID, push.Handlers{
		OnEvent: func(e events.Event) { live(func() { f.receive(e) }) },
		OnOpen:  func() { live(func() { f.state.SetConnected(true) }) },
		OnClose: func() { live(func() { f.state.SetConnected(false) }) },
		OnError: func(err error) { f.logger.Debug("push error", "client", ClientID, "err", err) },
	}, f.pushOpts)
	f.client = c
	return c
}

// Stop halts auto-refresh, disconnects and waits for in-flight refreshes.
func (f *Flow) Stop() {
	f.stopPoller()
	f.mu.Lock()
	c := f.client
	f.client = nil
	f.mu.Unlock()
	if c != nil {
		c.Disconnect()
		f.state.SetConnected(false)
	}
	f.inflight.Wait()
}

func (f *Flow) receive(e events.Event) {
	if f.store != nil {
		if frame, err := events.Encode(e); err == nil {
			if err := f.store.InsertEvent(ClientID, string(e.Type()), string(frame)); err != nil {
				f.logger.Debug("event log insert failed", "err", err)
			}
		}
	}
	events.Dispatch(e, adminEvents{f})
}

type adminEvents struct{ f *Flow }

func (h adminEvents) BottleneckDetected(e events.BottleneckDetected) {
	h.f.state.AddAlert(AlertFromEvent(e, uuid.NewString(), h.f.now()))
	if e.Severity == events.SeverityCritical && h.f.notifier != nil {
		go h.f.notifier.NotifyBottleneck(e)
	}
}

// Patient-addressed events are not shown on the dashboard.
func (adminEvents) QueueUpdated(events.QueueUpdated)               {}
func (adminEvents) NotificationTrigger(events.NotificationTrigger) {}

// AlertFromEvent builds a dashboard alert from a pushed bottleneck. Severity
// defaults to warning and recommendations get ascending priorities in the
// order received.
func AlertFromEvent(e events.BottleneckDetected, id string, at time.Time) api.Alert {
	severity := e.Severity
	if severity == "" {
		severity = events.SeverityWarning
	}
	msg := e.Message
	if msg == "" {
		msg = "Bottleneck at " + e.Station
	}
	recs := make([]api.Recommendation, len(e.Recommendations))
	for i, r := range e.Recommendations {
		recs[i] = api.Recommendation{Action: r, Priority: i + 1}
	}
	return api.Alert{
		AlertID:         id,
		Station:         e.Station,
		Severity:        string(severity),
		Message:         msg,
		DetectedAt:      at.UTC().Format(time.RFC3339),
		Recommendations: recs,
	}
}
