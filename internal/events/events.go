package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type is the value of the event_type discriminator on push-channel frames.
type Type string

const (
	TypeQueueUpdated        Type = "queue_updated"
	TypeBottleneckDetected  Type = "bottleneck_detected"
	TypeNotificationTrigger Type = "notification_trigger"
)

var (
	// ErrMalformed is returned by Decode for frames that are not a JSON object.
	ErrMalformed = errors.New("malformed event frame")
	// ErrUnknownType is returned by Decode when event_type is missing or not recognised.
	ErrUnknownType = errors.New("unknown event type")
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type NotificationType string

const (
	NotificationPosition NotificationType = "position_alert"
	NotificationReady    NotificationType = "ready_alert"
	NotificationDelay    NotificationType = "delay_alert"
)

// Event is one of QueueUpdated, BottleneckDetected or NotificationTrigger.
// The set is closed: the unexported method keeps other packages from adding variants.
type Event interface {
	Type() Type
	isEvent()
}

// QueueUpdated moves a patient within a station queue.
type QueueUpdated struct {
	PatientID     string  `json:"patient_id"`
	QueueNumber   int     `json:"queue_number"`
	Position      float64 `json:"position"`
	EstimatedWait float64 `json:"estimated_wait"`
	Station       string  `json:"station"`
}

// BottleneckDetected reports a congested station.
type BottleneckDetected struct {
	Station         string   `json:"station"`
	Severity        Severity `json:"severity"`
	QueueLength     int      `json:"queue_length"`
	AverageWait     float64  `json:"average_wait"`
	Recommendations []string `json:"recommendations"`
	Message         string   `json:"message,omitempty"`
}

// NotificationTrigger asks the client to show a message to one patient.
type NotificationTrigger struct {
	PatientID        string           `json:"patient_id"`
	NotificationType NotificationType `json:"notification_type"`
	MessageTH        string           `json:"message_th"`
	MessageEN        string           `json:"message_en"`
	ActionRequired   bool             `json:"action_required"`
}

func (QueueUpdated) Type() Type        { return TypeQueueUpdated }
func (BottleneckDetected) Type() Type  { return TypeBottleneckDetected }
func (NotificationTrigger) Type() Type { return TypeNotificationTrigger }

func (QueueUpdated) isEvent()        {}
func (BottleneckDetected) isEvent()  {}
func (NotificationTrigger) isEvent() {}

// Message returns the Thai text for lang "th" and the English text otherwise,
// falling back to whichever one is present.
func (n NotificationTrigger) Message(lang string) string {
	if lang == "th" && n.MessageTH != "" {
		return n.MessageTH
	}
	if n.MessageEN != "" {
		return n.MessageEN
	}
	return n.MessageTH
}

// Decode parses a single push-channel frame.
func Decode(frame []byte) (Event, error) {
	var head struct {
		EventType Type `json:"event_type"`
	}
	if err := json.Unmarshal(frame, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var (
		e   Event
		err error
	)
	switch head.EventType {
	case TypeQueueUpdated:
		var v QueueUpdated
		err = json.Unmarshal(frame, &v)
		e = v
	case TypeBottleneckDetected:
		var v BottleneckDetected
		err = json.Unmarshal(frame, &v)
		e = v
	case TypeNotificationTrigger:
		var v NotificationTrigger
		err = json.Unmarshal(frame, &v)
		e = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.EventType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, head.EventType, err)
	}
	return e, nil
}

// Encode writes e as a frame, including its discriminator.
func Encode(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(e.Type())
	fields["event_type"] = tag
	return json.Marshal(fields)
}

// Handler receives decoded events, one method per variant.
type Handler interface {
	QueueUpdated(QueueUpdated)
	BottleneckDetected(BottleneckDetected)
	NotificationTrigger(NotificationTrigger)
}

// Dispatch calls the Handler method matching e.
func Dispatch(e Event, h Handler) {
	switch v := e.(type) {
	case QueueUpdated:
		h.QueueUpdated(v)
	case BottleneckDetected:
		h.BottleneckDetected(v)
	case NotificationTrigger:
		h.NotificationTrigger(v)
	}
}
