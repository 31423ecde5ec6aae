package state_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/zsprackett/flowcontrol/internal/api"
	"github.com/zsprackett/flowcontrol/internal/events"
	"github.com/zsprackett/flowcontrol/internal/state"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func samplePatient() state.PatientQueueState {
	return state.PatientQueueState{
		PatientID:            "P042",
		QueueNumber:          17,
		CurrentStation:       "registration",
		PositionInQueue:      5,
		EstimatedWaitMinutes: 25,
		Status:               state.StatusWaiting,
	}
}

func TestSetPatientStampsAndClearsError(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := state.NewPatient(nil, state.WithClock(fixedClock(now)))
	p.SetError("network down")

	p.SetPatient(samplePatient())

	v := p.Snapshot()
	if !v.HasPatient() {
		t.Fatal("expected a patient")
	}
	if !v.Patient.LastUpdated.Equal(now) {
		t.Errorf("lastUpdated: got %v want %v", v.Patient.LastUpdated, now)
	}
	if v.Err != "" {
		t.Errorf("error not cleared: %q", v.Err)
	}
}

func TestUpdatesAreNoOpsWithoutPatient(t *testing.T) {
	p := state.NewPatient(nil)
	changes := 0
	p.OnChange(func() { changes++ })

	p.UpdatePosition(3, 12)
	p.UpdateJourney([]api.JourneyStep{{Station: "lab"}}, 40)
	p.UpdateStation("pharmacy")
	p.UpdateStatus(api.QueueStatusResponse{PositionInQueue: 1})
	p.AddNotification(events.NotificationTrigger{MessageEN: "hi"})

	if p.Snapshot().HasPatient() {
		t.Error("updates created a patient")
	}
	if changes != 0 {
		t.Errorf("OnChange fired %d times for no-op updates", changes)
	}
}

func TestUpdatesAfterClearPatientAreNoOps(t *testing.T) {
	p := state.NewPatient(nil)
	p.SetPatient(samplePatient())
	p.ClearPatient()

	p.UpdatePosition(3, 12)
	p.UpdateJourney([]api.JourneyStep{{Station: "lab"}}, 40)
	p.UpdateStation("pharmacy")

	if p.Snapshot().HasPatient() {
		t.Error("container should remain without a patient")
	}
}

func TestUpdatePositionPatchesOnlyPositionAndWait(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := start
	p := state.NewPatient(nil, state.WithClock(func() time.Time { return now }))
	p.SetPatient(samplePatient())

	now = start.Add(time.Minute)
	p.UpdatePosition(3, 12)

	got := p.Snapshot().Patient
	if got.PositionInQueue != 3 || got.EstimatedWaitMinutes != 12 {
		t.Errorf("position/wait: got %d/%d", got.PositionInQueue, got.EstimatedWaitMinutes)
	}
	if got.CurrentStation != "registration" || got.QueueNumber != 17 {
		t.Errorf("unrelated fields changed: %+v", got)
	}
	if !got.LastUpdated.Equal(now) {
		t.Errorf("lastUpdated not restamped: %v", got.LastUpdated)
	}
}

func TestFractionalMinutesRound(t *testing.T) {
	p := state.NewPatient(nil)
	p.SetPatient(state.CheckedIn(&api.CheckInResponse{PatientID: "P042", PositionInQueue: 4.6, EstimatedWaitMinutes: 12.5}))
	if got := p.Snapshot().Patient; got.PositionInQueue != 5 || got.EstimatedWaitMinutes != 13 {
		t.Errorf("check-in: got %d/%d", got.PositionInQueue, got.EstimatedWaitMinutes)
	}

	p.UpdatePosition(2.4, -0.7)
	if got := p.Snapshot().Patient; got.PositionInQueue != 2 || got.EstimatedWaitMinutes != 0 {
		t.Errorf("push: got %d/%d", got.PositionInQueue, got.EstimatedWaitMinutes)
	}

	p.UpdateStatus(api.QueueStatusResponse{PositionInQueue: 1, EstimatedWaitMinutes: 7.49})
	if got := p.Snapshot().Patient; got.EstimatedWaitMinutes != 7 {
		t.Errorf("status: got %d", got.EstimatedWaitMinutes)
	}
}

func TestUpdateJourneyReplacesWholesale(t *testing.T) {
	p := state.NewPatient(nil)
	p.SetPatient(samplePatient())
	p.UpdateJourney([]api.JourneyStep{
		{Station: "registration", Status: api.StepCompleted},
		{Station: "lab", Status: api.StepWaiting, Position: floatPtr(4)},
		{Station: "pharmacy", Status: api.StepPending},
	}, 33)

	p.UpdateJourney([]api.JourneyStep{{Station: "lab", Status: api.StepInProgress}}, 66)

	got := p.Snapshot().Patient
	if len(got.Journey) != 1 || got.Journey[0].Position != nil {
		t.Errorf("journey should be replaced, got %+v", got.Journey)
	}
	if got.OverallProgressPercent != 66 {
		t.Errorf("progress: got %v", got.OverallProgressPercent)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	steps := []api.JourneyStep{{Station: "lab", Position: floatPtr(2)}}
	p := state.NewPatient(nil)
	p.SetPatient(samplePatient())
	p.UpdateJourney(steps, 10)

	*steps[0].Position = 99
	v := p.Snapshot()
	*v.Patient.Journey[0].Position = 77
	v.Patient.CurrentStation = "mutated"

	again := p.Snapshot().Patient
	if *again.Journey[0].Position != 2 || again.CurrentStation != "registration" {
		t.Errorf("container state leaked through a copy: %+v", again)
	}
}

func TestUpdateStatusAppliesFieldGroup(t *testing.T) {
	p := state.NewPatient(nil)
	p.SetPatient(samplePatient())
	p.UpdateStatus(api.QueueStatusResponse{
		PositionInQueue:      1,
		EstimatedWaitMinutes: 4,
		CurrentStation:       "doctor",
		Status:               "in_progress",
	})
	got := p.Snapshot().Patient
	if got.PositionInQueue != 1 || got.EstimatedWaitMinutes != 4 || got.CurrentStation != "doctor" || got.Status != state.StatusInProgress {
		t.Errorf("unexpected state: %+v", got)
	}
	if got.QueueNumber != 17 {
		t.Errorf("queue number overwritten with zero: %d", got.QueueNumber)
	}
}

func TestNotificationsNewestFirstAndCapped(t *testing.T) {
	p := state.NewPatient(nil)
	p.SetPatient(samplePatient())
	for i := range state.MaxNotifications + 5 {
		p.AddNotification(events.NotificationTrigger{MessageEN: fmt.Sprintf("n%d", i)})
	}
	notes := p.Snapshot().Notifications
	if len(notes) != state.MaxNotifications {
		t.Fatalf("got %d notifications", len(notes))
	}
	if notes[0].MessageEN != fmt.Sprintf("n%d", state.MaxNotifications+4) {
		t.Errorf("newest not first: %q", notes[0].MessageEN)
	}

	p.ClearPatient()
	if len(p.Snapshot().Notifications) != 0 {
		t.Error("ClearPatient should drop notifications")
	}
}

func TestNewPatientWithInitialState(t *testing.T) {
	initial := samplePatient()
	p := state.NewPatient(&initial)
	initial.PatientID = "changed"
	if got := p.PatientID(); got != "P042" {
		t.Errorf("PatientID: got %q", got)
	}
	if p.Language() != api.LanguageThai {
		t.Errorf("default language: got %q", p.Language())
	}
}

func TestOnChangeFiresOnlyOnChange(t *testing.T) {
	p := state.NewPatient(nil)
	changes := 0
	p.OnChange(func() { changes++ })
	p.SetConnected(true)
	p.SetConnected(true)
	p.SetLoading(false)
	if changes != 1 {
		t.Errorf("got %d change notifications, want 1", changes)
	}
}
