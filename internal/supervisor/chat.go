package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zsprackett/flowcontrol/internal/api"
	"github.com/zsprackett/flowcontrol/internal/db"
)

var (
	ErrEmptyMessage = errors.New("empty message")
	ErrBusy         = errors.New("still waiting for the previous answer")
)

const welcome = "Hello! I am the hospital flow supervisor. " + helpText

// QuickActions are canned questions offered by the chat screen.
var QuickActions = []string{
	"What are the current bottlenecks?",
	"How can we reduce wait times?",
	"Which stations need more staff?",
	"Give me a summary",
}

type Store interface {
	SaveChatMessage(m db.ChatMessage) error
	LoadChatMessages() ([]db.ChatMessage, error)
	ClearChatMessages() error
}

// Chat is the supervisor transcript. One question is answered at a time.
type Chat struct {
	responder Responder
	store     Store
	context   func() api.SupervisorContext
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	msgs     []db.ChatMessage
	busy     bool
	onChange []func()
}

// NewChat restores the saved transcript, or starts one with a welcome
// message. store may be nil.
func NewChat(r Responder, store Store, hc func() api.SupervisorContext, logger *slog.Logger) (*Chat, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chat{responder: r, store: store, context: hc, logger: logger, now: time.Now}
	if store != nil {
		msgs, err := store.LoadChatMessages()
		if err != nil {
			return nil, fmt.Errorf("load transcript: %w", err)
		}
		c.msgs = msgs
	}
	if len(c.msgs) == 0 {
		c.append(db.RoleSystem, welcome)
	}
	return c, nil
}

func (c *Chat) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

func (c *Chat) Messages() []db.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.msgs)
}

func (c *Chat) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Send records the question, asks the responder and records the answer. A
// responder failure is recorded as a system message and returned.
func (c *Chat) Send(ctx context.Context, text string) (db.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return db.ChatMessage{}, ErrEmptyMessage
	}
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return db.ChatMessage{}, ErrBusy
	}
	c.busy = true
	c.mu.Unlock()

	c.append(db.RoleUser, text)

	reply, err := c.responder.Respond(ctx, text, c.context())
	c.setIdle()
	if err != nil {
		c.logger.Warn("supervisor reply failed", "err", err)
		return c.append(db.RoleSystem, "Sorry, I encountered an error: "+api.ErrorText(err)), err
	}
	return c.append(db.RoleAssistant, reply.Text), nil
}

// Reset clears the transcript back to the welcome message.
func (c *Chat) Reset() error {
	if c.store != nil {
		if err := c.store.ClearChatMessages(); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.msgs = nil
	c.mu.Unlock()
	c.append(db.RoleSystem, welcome)
	return nil
}

func (c *Chat) setIdle() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Chat) append(role db.ChatRole, text string) db.ChatMessage {
	m := db.ChatMessage{ID: uuid.NewString(), Role: role, Content: text, CreatedAt: c.now()}
	if c.store != nil {
		if err := c.store.SaveChatMessage(m); err != nil {
			c.logger.Warn("save chat message failed", "err", err)
		}
	}
	c.mu.Lock()
	c.msgs = append(c.msgs, m)
	l := slices.Clone(c.onChange)
	c.mu.Unlock()
	for _, fn := range l {
		fn()
	}
	return m
}
