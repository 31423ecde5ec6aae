package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/flowcontrol/internal/api"
	"github.com/zsprackett/flowcontrol/internal/applog"
	"github.com/zsprackett/flowcontrol/internal/auth"
	"github.com/zsprackett/flowcontrol/internal/config"
	"github.com/zsprackett/flowcontrol/internal/dashboard"
	"github.com/zsprackett/flowcontrol/internal/db"
	"github.com/zsprackett/flowcontrol/internal/notify"
	"github.com/zsprackett/flowcontrol/internal/push"
	"github.com/zsprackett/flowcontrol/internal/queue"
	"github.com/zsprackett/flowcontrol/internal/state"
	"github.com/zsprackett/flowcontrol/internal/supervisor"
	"github.com/zsprackett/flowcontrol/internal/ui/dialogs"
)

// tickInterval redraws relative times ("updated 5 seconds ago").
const tickInterval = 10 * time.Second

type App struct {
	tapp     *tview.Application
	pages    *tview.Pages
	focus    tview.Primitive
	help     string
	store    *db.DB
	client   *api.Client
	notifier *notify.Notifier
	cfg      config.Config
	logger   *slog.Logger
}

func NewApp(store *db.DB, client *api.Client, cfg config.Config, logger *slog.Logger) *App {
	a := &App{
		store:  store,
		client: client,
		cfg:    cfg,
		logger: logger,
	}

	a.notifier = notify.New(notify.Config{
		Enabled: cfg.Notifications.Enabled,
		Desktop: cfg.Notifications.Desktop,
		Webhook: cfg.Notifications.Webhook,
		NtfyURL: cfg.Notifications.NtfyURL,
	}, cfg.Language, applog.Component(logger, "notify"))

	a.tapp = tview.NewApplication()
	a.pages = tview.NewPages()
	a.tapp.SetRoot(a.pages, true).EnableMouse(false)
	a.tapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == '?' && a.help != "" && !a.inputFocused() {
			a.showHelp()
			return nil
		}
		return event
	})
	return a
}

func (a *App) pushConfig() push.Config {
	return push.Config{BaseURL: a.cfg.PushBaseURL(), Logger: applog.Component(a.logger, "push")}
}

func (a *App) pushOptions() push.Options {
	return push.Options{
		AutoReconnect: a.cfg.Push.AutoReconnect,
		RetryDelay:    time.Duration(a.cfg.Push.RetryDelayMs) * time.Millisecond,
	}
}

// RunPatient shows the patient screen until the user quits. A remembered
// ticket (patientID's, or the latest when empty) is resumed; otherwise the
// check-in form opens first.
func (a *App) RunPatient(ctx context.Context, patientID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := state.NewPatient(nil)
	st.SetLanguage(api.Language(a.cfg.Language))
	flow := queue.New(st, queue.Config{
		API:         a.client,
		Store:       a.store,
		Notifier:    a.notifier,
		Push:        a.pushConfig(),
		PushOptions: a.pushOptions(),
		Logger:      applog.Component(a.logger, "queue"),
	})
	defer flow.Close()

	screen := NewPatientScreen()
	render := func() { screen.Update(st.Snapshot(), time.Now()) }
	st.OnChange(func() { a.tapp.QueueUpdateDraw(render) })

	connect := func() {
		flow.Subscribe(ctx)
		if err := flow.Refresh(ctx); err != nil {
			a.logger.Warn("initial refresh failed", "err", err)
		}
	}

	checkIn := func() {
		form := dialogs.CheckInDialog(patientID, st.Language(),
			func(r dialogs.CheckInResult) {
				a.closeDialog("checkin")
				go func() {
					if err := flow.CheckIn(ctx, r.PatientID, r.ChiefComplaint, r.Language); err != nil {
						msg := st.Snapshot().Err
						a.tapp.QueueUpdateDraw(func() { a.showError("Check-in failed: " + msg) })
						return
					}
					connect()
				}()
			},
			func() { a.closeDialog("checkin") },
		)
		a.showDialog("checkin", form, 60, 15)
	}

	screen.SetCallbacks(
		checkIn,
		func() {
			go func() {
				if err := flow.Refresh(ctx); errors.Is(err, queue.ErrNotCheckedIn) {
					a.tapp.QueueUpdateDraw(checkIn)
				}
			}()
		},
		func() {
			if st.Language() == api.LanguageThai {
				st.SetLanguage(api.LanguageEnglish)
			} else {
				st.SetLanguage(api.LanguageThai)
			}
		},
		func() {
			if st.PatientID() == "" {
				return
			}
			modal := dialogs.Confirm{
				Message: "Leave the queue and clear your data?",
				Action:  "Leave",
				OnConfirm: func() {
					a.closeDialog("confirm-exit")
					go func() {
						if err := flow.Exit(ctx); err != nil {
							a.tapp.QueueUpdateDraw(func() { a.showError("Exit failed: " + api.ErrorText(err)) })
						}
					}()
				},
				OnCancel: func() { a.closeDialog("confirm-exit") },
			}.Modal()
			a.pages.AddPage("confirm-exit", modal, true, true)
		},
		a.tapp.Stop,
	)

	a.pages.AddPage("patient", screen, true, true)
	a.focus = screen
	a.help = dialogs.PatientHelp
	render()

	resumed, err := flow.Resume(patientID)
	if err != nil {
		a.logger.Warn("resume failed", "err", err)
	}
	if resumed {
		go connect()
	} else {
		checkIn()
	}

	go a.tick(ctx, render)
	return a.tapp.Run()
}

// RunAdmin shows the dashboard. When admin accounts exist the login form
// comes first and its token is attached to admin API calls.
func (a *App) RunAdmin(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var flow *dashboard.Flow
	defer func() {
		if flow != nil {
			flow.Stop()
		}
	}()
	start := func() {
		var err error
		flow, err = a.startDashboard(ctx)
		if err != nil {
			a.showError(api.ErrorText(err))
		}
	}

	needLogin, err := a.store.HasAnyAccount()
	if err != nil {
		return fmt.Errorf("check accounts: %w", err)
	}
	if needLogin {
		a.showLogin("", start)
	} else {
		a.logger.Warn("no admin accounts; dashboard is open without login")
		start()
	}
	return a.tapp.Run()
}

func (a *App) showLogin(message string, onSuccess func()) {
	form := dialogs.LoginDialog(message,
		func(user, pass string) {
			a.closeDialog("login")
			ttl := time.Duration(a.cfg.Auth.TokenTTLMinutes) * time.Minute
			token, err := auth.Login(a.store, a.cfg.Auth.JWTSecret, user, pass, ttl)
			if err != nil {
				a.logger.Warn("admin login failed", "user", user, "err", err)
				a.showLogin("Invalid username or password", onSuccess)
				return
			}
			a.logger.Info("admin logged in", "user", user)
			a.client.SetToken(token)
			onSuccess()
		},
		a.tapp.Stop,
	)
	a.showDialog("login", form, 50, 11)
}

func (a *App) startDashboard(ctx context.Context) (*dashboard.Flow, error) {
	logger := applog.Component(a.logger, "dashboard")
	st := state.NewDashboard()
	st.SetAutoRefresh(a.cfg.Dashboard.AutoRefresh)
	st.SetRefreshInterval(time.Duration(a.cfg.Dashboard.RefreshIntervalSeconds) * time.Second)

	flow := dashboard.New(st, dashboard.Config{
		API:              a.client,
		Store:            a.store,
		Notifier:         a.notifier,
		Push:             a.pushConfig(),
		PushOptions:      a.pushOptions(),
		SimulateIncrease: a.cfg.Dashboard.SimulateIncrease,
		ResolveDecrease:  a.cfg.Dashboard.ResolveDecrease,
		Logger:           logger,
	})

	responder := supervisor.Fallback{
		Primary:   supervisor.RemoteResponder{API: a.client},
		Secondary: supervisor.RuleResponder{},
		Logger:    applog.Component(a.logger, "supervisor"),
	}
	chat, err := supervisor.NewChat(responder, a.store, func() api.SupervisorContext {
		return supervisor.BuildContext(st.Snapshot(), time.Now())
	}, applog.Component(a.logger, "supervisor"))
	if err != nil {
		return nil, fmt.Errorf("open supervisor chat: %w", err)
	}

	screen := NewAdminScreen(a.tapp)
	chatScreen := NewChatScreen(a.tapp, supervisor.QuickActions)
	render := func() { screen.Update(st.Snapshot(), time.Now()) }
	renderChat := func() { chatScreen.Update(chat.Messages(), chat.Busy()) }
	st.OnChange(func() { a.tapp.QueueUpdateDraw(render) })
	chat.OnChange(func() { a.tapp.QueueUpdateDraw(renderChat) })

	var report *dialogs.ReportDialog
	loadReport := func() {
		if err := flow.LoadReport(ctx); err != nil {
			return
		}
		v := st.Snapshot()
		a.tapp.QueueUpdateDraw(func() {
			if report != nil {
				report.Show(v.DailyReport, v.MetricsSummary)
			}
		})
	}

	background := func(what string, fn func() error) {
		go func() {
			if err := fn(); err != nil {
				a.tapp.QueueUpdateDraw(func() { a.showError(what + " failed: " + api.ErrorText(err)) })
			}
		}()
	}

	screen.SetCallbacks(AdminCallbacks{
		Refresh: func() { background("Refresh", func() error { return flow.Refresh(ctx) }) },
		ToggleAuto: func() {
			on, _ := st.AutoRefresh()
			flow.SetAutoRefresh(!on)
		},
		ChangeInterval: func(delta time.Duration) {
			_, every := st.AutoRefresh()
			flow.SetRefreshInterval(every + delta)
		},
		Simulate: func(station string) {
			modal := dialogs.Confirm{
				Message: fmt.Sprintf("Add %d patients to %s?", a.cfg.Dashboard.SimulateIncrease, stationLabel(station)),
				Action:  "Simulate",
				OnConfirm: func() {
					a.closeDialog("confirm-simulate")
					background("Simulate", func() error { return flow.SimulateBottleneck(ctx, station) })
				},
				OnCancel: func() { a.closeDialog("confirm-simulate") },
			}.Modal()
			a.pages.AddPage("confirm-simulate", modal, true, true)
		},
		Resolve: func(station string) {
			background("Resolve", func() error { return flow.ResolveBottleneck(ctx, station) })
		},
		SelectStation: st.SetSelectedStation,
		Apply: func(alertID string, idx int) {
			rec, err := flow.ApplyAction(alertID, idx)
			if err != nil {
				a.showError(api.ErrorText(err))
				return
			}
			a.showInfo("Action applied: " + rec.Action)
		},
		Dismiss: st.DismissAlert,
		ToggleDismissed: func() {
			st.SetShowDismissedAlerts(!st.Snapshot().ShowDismissed)
		},
		ClearDismissed: st.ClearDismissedAlerts,
		Report: func() {
			report = dialogs.NewReportDialog(func() {
				report = nil
				a.closeDialog("report")
			}, loadReport)
			v := st.Snapshot()
			if v.DailyReport != nil || v.MetricsSummary != nil {
				report.Show(v.DailyReport, v.MetricsSummary)
			} else {
				go loadReport()
			}
			a.showDialog("report", report, 70, 30)
		},
		Chat: func() {
			a.pages.SwitchToPage("chat")
			a.focus = chatScreen.Input()
			a.help = ""
			renderChat()
			a.tapp.SetFocus(chatScreen.Input())
		},
		Quit: a.tapp.Stop,
	})

	chatScreen.SetCallbacks(
		func(text string) {
			go func() {
				if _, err := chat.Send(ctx, text); errors.Is(err, supervisor.ErrBusy) {
					a.logger.Debug("chat busy, message dropped")
				}
			}()
		},
		func() {
			if err := chat.Reset(); err != nil {
				a.showError(fmt.Sprintf("Reset failed: %v", err))
			}
		},
		func() {
			a.pages.SwitchToPage("admin")
			a.focus = screen.Table()
			a.help = dialogs.AdminHelp
			a.tapp.SetFocus(screen.Table())
		},
	)

	a.pages.AddPage("chat", chatScreen, true, false)
	a.pages.AddPage("admin", screen, true, true)
	a.focus = screen.Table()
	a.help = dialogs.AdminHelp
	a.tapp.SetFocus(screen.Table())
	render()

	flow.Start(ctx)
	flow.Subscribe(ctx)
	go a.tick(ctx, render)
	return flow, nil
}

// tick redraws periodically so relative times stay current.
func (a *App) tick(ctx context.Context, render func()) {
	t := time.NewTicker(tickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.tapp.QueueUpdateDraw(render)
		}
	}
}

func (a *App) inputFocused() bool {
	switch a.tapp.GetFocus().(type) {
	case *tview.InputField, *tview.TextArea:
		return true
	}
	return false
}

func (a *App) showDialog(name string, widget tview.Primitive, width, height int) {
	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(nil, 0, 1, false).
			AddItem(widget, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)
	a.pages.AddPage(name, modal, true, true)
	a.tapp.SetFocus(widget)
}

func (a *App) closeDialog(name string) {
	a.pages.RemovePage(name)
	if a.focus != nil {
		a.tapp.SetFocus(a.focus)
	}
}

func (a *App) showHelp() {
	if a.pages.HasPage("help") {
		return
	}
	help := dialogs.HelpDialog(a.help, func() {
		a.closeDialog("help")
	})
	a.showDialog("help", help, 60, 26)
}

func (a *App) showError(msg string) {
	a.showModal("error", "[red]"+tview.Escape(msg)+"[-]")
}

func (a *App) showInfo(msg string) {
	a.showModal("info", tview.Escape(msg))
}

func (a *App) showModal(name, text string) {
	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(_ int, _ string) {
			a.closeDialog(name)
		})
	a.pages.AddPage(name, modal, true, true)
	a.tapp.SetFocus(modal)
}
