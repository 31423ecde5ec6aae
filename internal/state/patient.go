package state

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/zsprackett/flowcontrol/internal/api"
	"github.com/zsprackett/flowcontrol/internal/events"
)

type PatientStatus string

const (
	StatusWaiting    PatientStatus = "waiting"
	StatusInProgress PatientStatus = "in_progress"
	StatusCompleted  PatientStatus = "completed"
)

// MaxNotifications bounds the notification list kept for display.
const MaxNotifications = 20

// PatientQueueState is what a checked-in patient currently sees.
type PatientQueueState struct {
	PatientID              string
	QueueNumber            int
	CurrentStation         string
	PositionInQueue        int
	EstimatedWaitMinutes   int
	Complexity             *api.ComplexityScore
	Journey                []api.JourneyStep
	OverallProgressPercent float64
	Status                 PatientStatus
	CheckInTime            string
	LastUpdated            time.Time
}

// CheckedIn builds the record for a fresh check-in.
func CheckedIn(resp *api.CheckInResponse) PatientQueueState {
	return PatientQueueState{
		PatientID:            resp.PatientID,
		QueueNumber:          resp.QueueNumber,
		CurrentStation:       resp.CurrentStation,
		PositionInQueue:      whole(resp.PositionInQueue),
		EstimatedWaitMinutes: whole(resp.EstimatedWaitMinutes),
		Complexity:           resp.ComplexityScore,
		Status:               StatusWaiting,
		CheckInTime:          resp.Timestamp,
	}
}

// whole rounds a backend count or minute value to the nearest non-negative int.
func whole(x float64) int {
	if math.IsNaN(x) {
		return 0
	}
	return max(int(math.Round(x)), 0)
}

func (p PatientQueueState) clone() PatientQueueState {
	if p.Complexity != nil {
		c := *p.Complexity
		p.Complexity = &c
	}
	p.Journey = cloneJourney(p.Journey)
	return p
}

func cloneJourney(steps []api.JourneyStep) []api.JourneyStep {
	if steps == nil {
		return nil
	}
	out := make([]api.JourneyStep, len(steps))
	for i, s := range steps {
		if s.Position != nil {
			v := *s.Position
			s.Position = &v
		}
		if s.EstimatedWait != nil {
			v := *s.EstimatedWait
			s.EstimatedWait = &v
		}
		if s.EntryTime != nil {
			v := *s.EntryTime
			s.EntryTime = &v
		}
		if s.ExitTime != nil {
			v := *s.ExitTime
			s.ExitTime = &v
		}
		if s.DurationMinutes != nil {
			v := *s.DurationMinutes
			s.DurationMinutes = &v
		}
		out[i] = s
	}
	return out
}

// Notification is a received notification_trigger kept for display.
type Notification struct {
	events.NotificationTrigger
	ReceivedAt time.Time
}

// PatientView is a point-in-time copy of a Patient container.
type PatientView struct {
	Patient       *PatientQueueState
	Notifications []Notification
	Language      api.Language
	Connected     bool
	Loading       bool
	Err           string
}

// HasPatient reports whether a patient is checked in.
func (v PatientView) HasPatient() bool { return v.Patient != nil }

// Patient is the patient-side container. Updates that arrive while no patient
// is set are ignored, since push events can race with exit.
type Patient struct {
	mu       sync.Mutex
	now      func() time.Time
	patient  *PatientQueueState
	notes    []Notification
	lang     api.Language
	conn     bool
	loading  bool
	err      string
	onChange listeners
}

// NewPatient builds a container seeded with initial, which may be nil.
func NewPatient(initial *PatientQueueState, opts ...Option) *Patient {
	o := buildOptions(opts)
	p := &Patient{now: o.now, lang: api.LanguageThai}
	if initial != nil {
		c := initial.clone()
		p.patient = &c
	}
	return p
}

// OnChange registers fn to run after every mutation that changed the container.
// fn runs on the mutating goroutine without the lock held.
func (p *Patient) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = append(p.onChange, fn)
	p.mu.Unlock()
}

// update runs fn under the lock and fires listeners when fn reports a change.
func (p *Patient) update(fn func() bool) {
	p.mu.Lock()
	changed := fn()
	l := p.onChange
	p.mu.Unlock()
	if changed {
		l.fire()
	}
}

// SetPatient replaces the whole record and clears any error.
func (p *Patient) SetPatient(record PatientQueueState) {
	p.update(func() bool {
		c := record.clone()
		c.LastUpdated = p.now()
		p.patient = &c
		p.err = ""
		return true
	})
}

func (p *Patient) UpdatePosition(position, estimatedWait float64) {
	p.update(func() bool {
		if p.patient == nil {
			return false
		}
		p.patient.PositionInQueue = whole(position)
		p.patient.EstimatedWaitMinutes = whole(estimatedWait)
		p.patient.LastUpdated = p.now()
		return true
	})
}

// UpdateJourney replaces the journey and progress wholesale.
func (p *Patient) UpdateJourney(steps []api.JourneyStep, progressPercent float64) {
	p.update(func() bool {
		if p.patient == nil {
			return false
		}
		p.patient.Journey = cloneJourney(steps)
		p.patient.OverallProgressPercent = min(max(progressPercent, 0), 100)
		p.patient.LastUpdated = p.now()
		return true
	})
}

func (p *Patient) UpdateStation(station string) {
	p.update(func() bool {
		if p.patient == nil {
			return false
		}
		p.patient.CurrentStation = station
		p.patient.LastUpdated = p.now()
		return true
	})
}

// UpdateStatus applies a status fetch as one field group.
func (p *Patient) UpdateStatus(s api.QueueStatusResponse) {
	p.update(func() bool {
		if p.patient == nil {
			return false
		}
		p.patient.PositionInQueue = whole(s.PositionInQueue)
		p.patient.EstimatedWaitMinutes = whole(s.EstimatedWaitMinutes)
		if s.CurrentStation != "" {
			p.patient.CurrentStation = s.CurrentStation
		}
		if s.QueueNumber != 0 {
			p.patient.QueueNumber = s.QueueNumber
		}
		if s.Status != "" {
			p.patient.Status = PatientStatus(s.Status)
		}
		p.patient.LastUpdated = p.now()
		return true
	})
}

// ClearPatient resets to "no patient".
func (p *Patient) ClearPatient() {
	p.update(func() bool {
		changed := p.patient != nil || len(p.notes) > 0 || p.err != ""
		p.patient = nil
		p.notes = nil
		p.err = ""
		return changed
	})
}

// AddNotification prepends n, keeping at most MaxNotifications.
func (p *Patient) AddNotification(n events.NotificationTrigger) {
	p.update(func() bool {
		if p.patient == nil {
			return false
		}
		p.notes = slices.Insert(p.notes, 0, Notification{NotificationTrigger: n, ReceivedAt: p.now()})
		if len(p.notes) > MaxNotifications {
			p.notes = p.notes[:MaxNotifications]
		}
		return true
	})
}

func (p *Patient) SetError(msg string) {
	p.update(func() bool {
		changed := p.err != msg
		p.err = msg
		return changed
	})
}

func (p *Patient) SetLoading(loading bool) {
	p.update(func() bool {
		changed := p.loading != loading
		p.loading = loading
		return changed
	})
}

func (p *Patient) SetConnected(connected bool) {
	p.update(func() bool {
		changed := p.conn != connected
		p.conn = connected
		return changed
	})
}

func (p *Patient) SetLanguage(lang api.Language) {
	p.update(func() bool {
		changed := p.lang != lang
		p.lang = lang
		return changed
	})
}

func (p *Patient) Language() api.Language {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lang
}

// PatientID returns the current patient id, or "" when none is set.
func (p *Patient) PatientID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.patient == nil {
		return ""
	}
	return p.patient.PatientID
}

// Snapshot returns a deep copy safe to read without the lock.
func (p *Patient) Snapshot() PatientView {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := PatientView{
		Notifications: slices.Clone(p.notes),
		Language:      p.lang,
		Connected:     p.conn,
		Loading:       p.loading,
		Err:           p.err,
	}
	if p.patient != nil {
		c := p.patient.clone()
		v.Patient = &c
	}
	return v
}
