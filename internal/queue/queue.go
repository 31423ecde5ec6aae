// Package queue drives the patient side: check-in, status refresh, exit and
// the live push subscription that keeps the ticket current.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zsprackett/flowcontrol/internal/api"
	"github.com/zsprackett/flowcontrol/internal/db"
	"github.com/zsprackett/flowcontrol/internal/events"
	"github.com/zsprackett/flowcontrol/internal/push"
	"github.com/zsprackett/flowcontrol/internal/state"
)

var (
	ErrMissingInput = errors.New("patient id and chief complaint are required")
	ErrNotCheckedIn = errors.New("no patient is checked in")
)

// GuestID is used for the push client id when no patient is set.
const GuestID = "guest"

type API interface {
	CheckIn(ctx context.Context, req api.CheckInRequest) (*api.CheckInResponse, error)
	Status(ctx context.Context, patientID string) (*api.QueueStatusResponse, error)
	Journey(ctx context.Context, patientID string) (*api.JourneyResponse, error)
	ClearData(ctx context.Context, patientID string) error
}

type Store interface {
	SaveTicket(t *db.Ticket) error
	GetTicket(patientID string) (*db.Ticket, error)
	LatestTicket() (*db.Ticket, error)
	DeleteTicket(patientID string) error
	InsertEvent(clientID, eventType, payload string) error
}

type Notifier interface {
	NotifyPatient(e events.NotificationTrigger)
}

type Config struct {
	API         API
	Store       Store
	Notifier    Notifier
	Push        push.Config
	PushOptions push.Options
	Logger      *slog.Logger
}

type Flow struct {
	state    *state.Patient
	api      API
	store    Store
	notifier Notifier
	pushCfg  push.Config
	pushOpts push.Options
	logger   *slog.Logger

	mu     sync.Mutex
	client *push.Client
}

// New wires a patient flow around st. Store and Notifier may be nil.
func New(st *state.Patient, cfg Config) *Flow {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pushCfg := cfg.Push
	if pushCfg.Logger == nil {
		pushCfg.Logger = logger
	}
	return &Flow{
		state:    st,
		api:      cfg.API,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		pushCfg:  pushCfg,
		pushOpts: cfg.PushOptions,
		logger:   logger,
	}
}

func (f *Flow) State() *state.Patient { return f.state }

// CheckIn registers the patient with the backend and, on success, replaces
// the container's record and remembers the ticket locally.
func (f *Flow) CheckIn(ctx context.Context, patientID, complaint string, lang api.Language) error {
	patientID, complaint = strings.TrimSpace(patientID), strings.TrimSpace(complaint)
	if patientID == "" || complaint == "" {
		f.state.SetError(ErrMissingInput.Error())
		return ErrMissingInput
	}
	if lang == "" {
		lang = f.state.Language()
	}

	f.state.SetLoading(true)
	defer f.state.SetLoading(false)

	resp, err := f.api.CheckIn(ctx, api.CheckInRequest{
		PatientID:      patientID,
		ChiefComplaint: complaint,
		Language:       lang,
	})
	if err != nil {
		f.logger.Warn("check-in failed", "patient", patientID, "err", err)
		f.state.SetError(api.ErrorText(err))
		return fmt.Errorf("check in %s: %w", patientID, err)
	}

	f.state.SetLanguage(lang)
	f.state.SetPatient(state.CheckedIn(resp))
	f.logger.Info("checked in", "patient", resp.PatientID, "queue_number", resp.QueueNumber)

	if f.store != nil {
		err := f.store.SaveTicket(&db.Ticket{
			PatientID:      resp.PatientID,
			QueueNumber:    resp.QueueNumber,
			Station:        resp.CurrentStation,
			ChiefComplaint: complaint,
			Language:       string(lang),
			CheckInTime:    resp.Timestamp,
		})
		if err != nil {
			f.logger.Warn("save ticket failed", "patient", resp.PatientID, "err", err)
		}
	}
	return nil
}

// Resume restores a remembered ticket: patientID's when given, else the most
// recent one. It reports whether one was found.
func (f *Flow) Resume(patientID string) (bool, error) {
	if f.store == nil {
		return false, nil
	}
	var (
		t   *db.Ticket
		err error
	)
	if patientID != "" {
		t, err = f.store.GetTicket(patientID)
	} else {
		t, err = f.store.LatestTicket()
	}
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load ticket: %w", err)
	}
	if t.Language != "" {
		f.state.SetLanguage(api.Language(t.Language))
	}
	f.state.SetPatient(state.PatientQueueState{
		PatientID:      t.PatientID,
		QueueNumber:    t.QueueNumber,
		CurrentStation: t.Station,
		Status:         state.StatusWaiting,
		CheckInTime:    t.CheckInTime,
	})
	f.logger.Info("resumed ticket", "patient", t.PatientID)
	return true, nil
}

// Refresh fetches status and journey concurrently. On any failure the
// container keeps its last-known state and records the error.
func (f *Flow) Refresh(ctx context.Context) error {
	id := f.state.PatientID()
	if id == "" {
		return ErrNotCheckedIn
	}

	f.state.SetLoading(true)
	defer f.state.SetLoading(false)

	var (
		status  *api.QueueStatusResponse
		journey *api.JourneyResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		status, err = f.api.Status(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		journey, err = f.api.Journey(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		f.logger.Warn("refresh failed", "patient", id, "err", err)
		f.state.SetError(api.ErrorText(err))
		return fmt.Errorf("refresh %s: %w", id, err)
	}

	f.state.UpdateStatus(*status)
	if journey.Journey != nil {
		f.state.UpdateJourney(journey.Journey, journey.OverallProgressPercent)
	}
	f.state.SetError("")
	return nil
}

// Exit clears the patient's data on the backend, then locally.
func (f *Flow) Exit(ctx context.Context) error {
	id := f.state.PatientID()
	if id == "" {
		return ErrNotCheckedIn
	}
	if err := f.api.ClearData(ctx, id); err != nil {
		f.logger.Warn("clear data failed", "patient", id, "err", err)
		f.state.SetError(api.ErrorText(err))
		return fmt.Errorf("clear %s: %w", id, err)
	}
	f.Close()
	f.state.ClearPatient()
	if f.store != nil {
		if err := f.store.DeleteTicket(id); err != nil {
			f.logger.Warn("delete ticket failed", "patient", id, "err", err)
		}
	}
	f.logger.Info("patient exited", "patient", id)
	return nil
}

// Subscribe opens the push connection for the current patient, replacing
// any existing one. A replaced client can no longer touch the container: its
// callbacks run only while it is still the flow's client.
func (f *Flow) Subscribe(ctx context.Context) *push.Client {
	id := f.state.PatientID()
	if id == "" {
		id = GuestID
	}
	clientID := push.PatientClientID(id)
	h := patientEvents{f: f, clientID: clientID}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		f.client.Disconnect()
	}
	var c *push.Client
	current := func() bool {
		return f.client == c
	}
	c = push.Connect(ctx, f.pushCfg, clientID, push.Handlers{
		OnEvent: func(e events.Event) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if current() {
				h.receive(e)
			}
		},
		OnOpen:  func() { f.setConnected(current, true) },
		OnClose: func() { f.setConnected(current, false) },
		OnError: func(err error) { f.logger.Debug("push error", "client", clientID, "err", err) },
	}, f.pushOpts)
	f.client = c
	return c
}

func (f *Flow) setConnected(current func() bool, connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if current() {
		f.state.SetConnected(connected)
	}
}

// Close disconnects the push subscription, if any.
func (f *Flow) Close() {
	f.mu.Lock()
	c := f.client
	f.client = nil
	f.mu.Unlock()
	if c != nil {
		c.Disconnect()
		f.state.SetConnected(false)
	}
}

type patientEvents struct {
	f        *Flow
	clientID string
}

func (h patientEvents) receive(e events.Event) {
	if h.f.store != nil {
		if frame, err := events.Encode(e); err == nil {
			if err := h.f.store.InsertEvent(h.clientID, string(e.Type()), string(frame)); err != nil {
				h.f.logger.Debug("event log insert failed", "err", err)
			}
		}
	}
	events.Dispatch(e, h)
}

func (h patientEvents) QueueUpdated(e events.QueueUpdated) {
	h.f.state.UpdatePosition(e.Position, e.EstimatedWait)
	if e.Station != "" {
		h.f.state.UpdateStation(e.Station)
	}
}

func (h patientEvents) NotificationTrigger(e events.NotificationTrigger) {
	h.f.state.AddNotification(e)
	if h.f.notifier != nil {
		go h.f.notifier.NotifyPatient(e)
	}
}

// BottleneckDetected is an admin concern.
func (patientEvents) BottleneckDetected(events.BottleneckDetected) {}
