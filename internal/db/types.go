package db

import "time"

// Ticket is the locally remembered check-in for a patient.
type Ticket struct {
	PatientID      string
	QueueNumber    int
	Station        string
	ChiefComplaint string
	Language       string
	CheckInTime    string
	CreatedAt      time.Time
}

// LoggedEvent is a push event as it was received.
type LoggedEvent struct {
	ID        int64
	ClientID  string
	EventType string
	Payload   string
	Ts        time.Time
}

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

type ChatMessage struct {
	ID        string
	Role      ChatRole
	Content   string
	CreatedAt time.Time
}

type Account struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
