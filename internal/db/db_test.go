package db_test

import (
	"errors"
	"testing"
	"time"

	"github.com/zsprackett/flowcontrol/internal/db"
)

func openStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return store
}

func TestMigrateTwice(t *testing.T) {
	store := openStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestTicketCRUD(t *testing.T) {
	store := openStore(t)

	if _, err := store.LatestTicket(); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("empty store: got %v want ErrNotFound", err)
	}

	old := &db.Ticket{PatientID: "P001", QueueNumber: 3, Station: "lab", CreatedAt: time.Now().Add(-time.Hour)}
	cur := &db.Ticket{PatientID: "P042", QueueNumber: 17, Station: "registration", ChiefComplaint: "fever", Language: "en"}
	for _, tk := range []*db.Ticket{old, cur} {
		if err := store.SaveTicket(tk); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := store.LatestTicket()
	if err != nil {
		t.Fatal(err)
	}
	if got.PatientID != "P042" || got.QueueNumber != 17 || got.ChiefComplaint != "fever" || got.Language != "en" {
		t.Errorf("latest: %+v", got)
	}

	cur.Station = "pharmacy"
	if err := store.SaveTicket(cur); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetTicket("P042")
	if got.Station != "pharmacy" {
		t.Errorf("station after replace: %q", got.Station)
	}

	if err := store.DeleteTicket("P042"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetTicket("P042"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("after delete: got %v", err)
	}
}

func TestEventLog(t *testing.T) {
	store := openStore(t)

	store.InsertEvent("patient_P042", "queue_updated", `{"position":3}`)
	store.InsertEvent("admin_dashboard", "bottleneck_detected", `{"station":"lab"}`)
	store.InsertEvent("patient_P042", "notification_trigger", `{}`)

	events, err := store.RecentEvents("patient_P042", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != "notification_trigger" {
		t.Errorf("expected most recent first: got %q", events[0].EventType)
	}

	all, _ := store.RecentEvents("", 2)
	if len(all) != 2 {
		t.Errorf("limit: got %d", len(all))
	}

	n, err := store.PruneEvents(time.Now().Add(time.Minute))
	if err != nil || n != 3 {
		t.Errorf("prune: n=%d err=%v", n, err)
	}
}

func TestChatTranscript(t *testing.T) {
	store := openStore(t)
	base := time.Now().Truncate(time.Millisecond)
	store.SaveChatMessage(db.ChatMessage{ID: "m1", Role: db.RoleSystem, Content: "welcome", CreatedAt: base})
	store.SaveChatMessage(db.ChatMessage{ID: "m2", Role: db.RoleUser, Content: "any bottlenecks?", CreatedAt: base.Add(time.Second)})

	msgs, err := store.LoadChatMessages()
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].Role != db.RoleUser {
		t.Errorf("transcript: %+v", msgs)
	}
	if !msgs[1].CreatedAt.Equal(base.Add(time.Second)) {
		t.Errorf("created_at: %v", msgs[1].CreatedAt)
	}

	store.ClearChatMessages()
	msgs, _ = store.LoadChatMessages()
	if len(msgs) != 0 {
		t.Errorf("expected empty transcript, got %d", len(msgs))
	}
}

func TestAccountCRUD(t *testing.T) {
	store := openStore(t)

	has, _ := store.HasAnyAccount()
	if has {
		t.Error("fresh store has accounts")
	}

	acc, err := store.CreateAccount("alice", "hashed-pw")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if acc.ID == "" {
		t.Error("expected non-empty ID")
	}
	if _, err := store.CreateAccount("alice", "other"); err == nil {
		t.Error("duplicate username accepted")
	}

	got, err := store.GetAccountByUsername("alice")
	if err != nil {
		t.Fatalf("GetAccountByUsername: %v", err)
	}
	if got.ID != acc.ID {
		t.Errorf("ID mismatch: %s != %s", got.ID, acc.ID)
	}

	if err := store.UpdateAccountPassword(acc.ID, "new-hash"); err != nil {
		t.Fatalf("UpdateAccountPassword: %v", err)
	}
	got, _ = store.GetAccountByUsername("alice")
	if got.PasswordHash != "new-hash" {
		t.Error("password not updated")
	}
	if err := store.UpdateAccountPassword("nobody", "x"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("update unknown: got %v", err)
	}
	if _, err := store.GetAccountByUsername("bob"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("missing user: got %v", err)
	}

	has, err = store.HasAnyAccount()
	if err != nil || !has {
		t.Errorf("HasAnyAccount: %v %v", has, err)
	}
}

func TestEventsPrunedAt(t *testing.T) {
	store := openStore(t)
	at, err := store.EventsPrunedAt()
	if err != nil || !at.IsZero() {
		t.Fatalf("fresh store: %v %v", at, err)
	}

	before := time.Now().Add(-time.Second)
	if _, err := store.PruneEvents(time.Now()); err != nil {
		t.Fatal(err)
	}
	at, err = store.EventsPrunedAt()
	if err != nil {
		t.Fatal(err)
	}
	if at.Before(before) || at.After(time.Now().Add(time.Second)) {
		t.Errorf("pruned at %v", at)
	}
}
