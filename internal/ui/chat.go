package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/flowcontrol/internal/db"
)

// ChatScreen is the supervisor conversation: transcript, quick questions and
// an input line.
type ChatScreen struct {
	*tview.Flex
	app        *tview.Application
	transcript *tview.TextView
	quick      *tview.List
	input      *tview.InputField

	onSend  func(text string)
	onReset func()
	onClose func()
}

func NewChatScreen(app *tview.Application, quickActions []string) *ChatScreen {
	s := &ChatScreen{app: app}

	s.transcript = tview.NewTextView().SetDynamicColors(true).SetWrap(true).SetScrollable(true)
	s.transcript.SetBorder(true).SetTitle(" Supervisor ").SetTitleAlign(tview.AlignLeft)
	s.transcript.SetBackgroundColor(ColorBackground)
	s.transcript.SetBorderColor(ColorBorder)

	s.quick = tview.NewList().ShowSecondaryText(false)
	s.quick.SetBorder(true).SetTitle(" Quick questions ").SetTitleAlign(tview.AlignLeft)
	s.quick.SetBackgroundColor(ColorBackground)
	s.quick.SetBorderColor(ColorBorder)
	for _, q := range quickActions {
		s.quick.AddItem(q, "", 0, nil)
	}
	s.quick.SetSelectedFunc(func(_ int, text, _ string, _ rune) {
		if s.onSend != nil {
			s.onSend(text)
		}
	})

	s.input = tview.NewInputField().SetLabel("> ").SetFieldBackgroundColor(ColorBackgroundElem)
	s.input.SetBackgroundColor(ColorBackgroundPanel)
	s.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := s.input.GetText()
		if text == "" || s.onSend == nil {
			return
		}
		s.input.SetText("")
		s.onSend(text)
	})

	footer := tview.NewTextView().SetDynamicColors(true)
	footer.SetBackgroundColor(ColorBackgroundPanel)
	footer.SetText("[green]Enter[-] send  [green]Tab[-] quick questions  [green]Ctrl+L[-] new conversation  [green]Esc[-] back to dashboard")

	body := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(s.transcript, 0, 70, false).
		AddItem(s.quick, 0, 30, false)

	s.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, false).
		AddItem(s.input, 1, 0, true).
		AddItem(footer, 1, 0, false)

	s.Flex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEscape:
			call(s.onClose)
		case tcell.KeyTab, tcell.KeyBacktab:
			if s.quick.HasFocus() {
				s.app.SetFocus(s.input)
			} else {
				s.app.SetFocus(s.quick)
			}
		case tcell.KeyCtrlL:
			call(s.onReset)
		default:
			return event
		}
		return nil
	})
	return s
}

func (s *ChatScreen) SetCallbacks(onSend func(string), onReset, onClose func()) {
	s.onSend = onSend
	s.onReset = onReset
	s.onClose = onClose
}

// Input is the focus target when the screen is shown.
func (s *ChatScreen) Input() *tview.InputField { return s.input }

// Update redraws the transcript. Call it on the UI goroutine.
func (s *ChatScreen) Update(msgs []db.ChatMessage, busy bool) {
	s.transcript.SetText(chatText(msgs, busy))
	s.transcript.ScrollToEnd()
	s.input.SetDisabled(busy)
}
