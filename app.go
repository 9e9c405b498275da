package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"opencode-nexus/internal/apperr"
	"opencode-nexus/internal/chat"
	"opencode-nexus/internal/config"
	"opencode-nexus/internal/eventbus"
	"opencode-nexus/internal/history"
	"opencode-nexus/internal/retry"
	"opencode-nexus/internal/transport"
)

// App wires the resilience layer together: config, the session store, the
// error broadcast, the persistent history and the transport client.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg       *config.Config
	cfgLoader *config.Loader
	bus       *eventbus.Bus
	errs      *apperr.Emitter
	store     *chat.Store
	hist      history.History
	client    transport.Client
	retryCfg  retry.Config
}

// NewApp creates a new App.
func NewApp() *App {
	errs := apperr.NewEmitter()
	return &App{
		bus:   eventbus.New(),
		errs:  errs,
		store: chat.NewStore(errs),
	}
}

// Startup loads configuration, opens the history database and builds the
// transport client.
func (a *App) Startup(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.ctx = ctx
	a.cancel = cancel

	loader, err := config.NewLoader()
	if err != nil {
		return fmt.Errorf("create config loader: %w", err)
	}
	a.cfgLoader = loader

	// First run: write the defaults so the user has a file to edit.
	if _, statErr := os.Stat(loader.FilePath()); os.IsNotExist(statErr) {
		if err := loader.Save(config.Defaults()); err != nil {
			slog.Warn("failed to write default config", "error", err)
		}
	}

	cfg, err := loader.Load()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = config.Defaults()
	}
	a.cfg = cfg
	slog.Info("configuration loaded", "path", loader.FilePath(), "provider", cfg.LLM.Provider)
	a.retryCfg = toRetryConfig(cfg.Retry)

	dbPath := cfg.HistoryPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".opencode-nexus", "history.db")
	}
	hist, err := history.NewSQLiteHistory(dbPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	a.hist = hist

	client, err := transport.New(cfg.LLM, cfg.Chat)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	if cfg.FallbackLLM != nil && cfg.FallbackLLM.APIKey != "" {
		if fb, err := transport.New(*cfg.FallbackLLM, cfg.Chat); err == nil {
			client = transport.NewFallback(client, fb)
		}
	}
	a.client = client

	// Restore persisted sessions (headers only; transcripts load on switch).
	sessions, err := hist.ListSessions(ctx)
	if err != nil {
		slog.Warn("failed to restore sessions", "error", err)
	}
	for i := range sessions {
		sess := sessions[i]
		a.store.AddSession(&sess)
	}

	a.bus.Subscribe(eventbus.TopicError, func(e eventbus.Event) {
		slog.Debug("error event", "payload", e.Payload)
	})

	slog.Info("started", "client", client.Name(), "sessions", len(sessions))
	return nil
}

// Shutdown releases resources.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.hist != nil {
		a.hist.Close()
	}
}

// NewSession creates a session, makes it current and persists it.
func (a *App) NewSession(ctx context.Context, title string) (chat.Session, error) {
	sess := chat.NewSession(title)
	a.store.AddSession(sess)
	if err := a.store.Switch(sess.ID); err != nil {
		return chat.Session{}, err
	}
	if err := a.hist.SaveSession(ctx, *sess); err != nil {
		slog.Warn("failed to persist session", "error", err)
	}
	a.bus.Publish(eventbus.TopicSessionCreated, *sess)
	return *sess, nil
}

// SwitchSession makes another session current, loading its transcript from
// history if the store only holds the header.
func (a *App) SwitchSession(ctx context.Context, sessionID string) error {
	if snap, ok := a.store.Snapshot(sessionID); ok && len(snap.Messages) == 0 {
		if full, err := a.hist.LoadSession(ctx, sessionID); err == nil {
			a.store.AddSession(&full)
		}
	}
	if err := a.store.Switch(sessionID); err != nil {
		return err
	}
	a.bus.Publish(eventbus.TopicSessionSwitched, sessionID)
	return nil
}

// ListSessions returns the persisted session list, with retry. A terminal
// failure is classified and broadcast before being returned.
func (a *App) ListSessions(ctx context.Context) ([]chat.Session, error) {
	sessions, err := retry.Do(ctx, a.retryCfg, "list sessions", func(ctx context.Context) ([]chat.Session, error) {
		return a.hist.ListSessions(ctx)
	})
	if err != nil {
		a.errs.Handle(err, "list sessions")
		return nil, err
	}
	return sessions, nil
}

// DeleteSession removes a session from the store and from history.
func (a *App) DeleteSession(ctx context.Context, sessionID string) error {
	if err := a.store.Delete(sessionID); err != nil {
		return err
	}
	return a.hist.DeleteSession(ctx, sessionID)
}

// SendMessage runs one exchange: append the user message, start the stream
// with retry, and fold the event feed into the store until the terminal
// event arrives.
func (a *App) SendMessage(ctx context.Context, text string) error {
	sessionID := a.store.CurrentID()
	if sessionID == "" {
		sess, err := a.NewSession(ctx, deriveTitle(text))
		if err != nil {
			return err
		}
		sessionID = sess.ID
	}

	userMsg, err := a.store.AppendUser(sessionID, text)
	if err != nil {
		return err
	}
	if err := a.hist.SaveMessage(ctx, sessionID, userMsg); err != nil {
		slog.Warn("failed to persist message", "error", err)
	}
	a.bus.Publish(eventbus.TopicMessageSent, userMsg)

	snap, _ := a.store.Snapshot(sessionID)
	events, err := retry.DoWithDiscard(ctx, a.retryCfg, "send message",
		func(context.Context) (<-chan chat.Event, error) {
			// The stream outlives the attempt window; it is bound to the app
			// context so a timed-out attempt is abandoned, not killed mid-read.
			return a.client.SendMessage(a.ctx, sessionID, snap.Messages)
		},
		func(feed <-chan chat.Event) {
			// An orphaned attempt delivered a stream nobody will consume.
			// Drain it so the producer can finish and release its connection.
			for range feed {
			}
		})
	if err != nil {
		a.errs.Handle(err, "send message")
		return err
	}

	for ev := range events {
		a.store.Apply(ev)
		switch ev.Type {
		case chat.EventMessageChunk:
			a.bus.Publish(eventbus.TopicMessageChunk, ev)
		case chat.EventMessageReceived:
			a.bus.Publish(eventbus.TopicMessageReceived, ev)
			a.persistSettled(ctx, sessionID)
		case chat.EventError:
			a.bus.Publish(eventbus.TopicError, ev.ErrMsg)
		}
	}
	return nil
}

// persistSettled writes the reconciled final assistant message to history.
func (a *App) persistSettled(ctx context.Context, sessionID string) {
	snap, ok := a.store.Snapshot(sessionID)
	if !ok || len(snap.Messages) == 0 {
		return
	}
	last := snap.Messages[len(snap.Messages)-1]
	if last.Role != chat.RoleAssistant {
		return
	}
	if err := a.hist.SaveMessage(ctx, sessionID, last); err != nil {
		slog.Warn("failed to persist message", "error", err)
	}
}

// Run reads commands from stdin until EOF or context cancellation.
func (a *App) Run(ctx context.Context) {
	unsubChunk := a.bus.Subscribe(eventbus.TopicMessageChunk, func(e eventbus.Event) {
		if ev, ok := e.Payload.(chat.Event); ok {
			fmt.Print(ev.Chunk)
		}
	})
	defer unsubChunk()
	unsubDone := a.bus.Subscribe(eventbus.TopicMessageReceived, func(e eventbus.Event) {
		fmt.Println()
	})
	defer unsubDone()

	errSub := a.errs.Subscribe(func(ce apperr.ClassifiedError) {
		fmt.Printf("\n%s\n", ce.UserMessage)
		for _, s := range apperr.RecoverySuggestions(ce.Kind) {
			fmt.Printf("  - %s\n", s)
		}
	})
	defer errSub.Unsubscribe()

	fmt.Println("Commands: /new [title], /sessions, /switch <id>, /delete <id>, /config, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		if line == "/quit" {
			return
		}
		a.handleLine(ctx, line)
		fmt.Print("> ")
	}
}

func (a *App) handleLine(ctx context.Context, line string) {
	switch {
	case strings.HasPrefix(line, "/new"):
		title := strings.TrimSpace(strings.TrimPrefix(line, "/new"))
		sess, err := a.NewSession(ctx, title)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Printf("session %s created\n", sess.ID)
	case line == "/sessions":
		sessions, err := a.ListSessions(ctx)
		if err != nil {
			// Already classified and broadcast; keep the prompt responsive.
			slog.Debug("list sessions failed", "error", err)
			return
		}
		current := a.store.CurrentID()
		for _, s := range sessions {
			marker := " "
			if s.ID == current {
				marker = "*"
			}
			fmt.Printf("%s %s  %s  %s\n", marker, s.ID, s.CreatedAt.Format(time.DateTime), s.Title)
		}
	case line == "/config":
		cfg := a.cfgLoader.Get()
		fmt.Printf("config file: %s\n", a.cfgLoader.FilePath())
		fmt.Printf("provider: %s  model: %s\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Printf("retry: %d attempts, initial %dms, max %dms, timeout %dms\n",
			cfg.Retry.MaxRetries, cfg.Retry.InitialDelayMS, cfg.Retry.MaxDelayMS, cfg.Retry.TimeoutMS)
	case strings.HasPrefix(line, "/switch "):
		id := strings.TrimSpace(strings.TrimPrefix(line, "/switch "))
		if err := a.SwitchSession(ctx, id); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	case strings.HasPrefix(line, "/delete "):
		id := strings.TrimSpace(strings.TrimPrefix(line, "/delete "))
		if err := a.DeleteSession(ctx, id); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	default:
		if err := a.SendMessage(ctx, line); err != nil {
			// Already classified and broadcast; keep the prompt responsive.
			slog.Debug("send failed", "error", err)
		}
	}
}

func toRetryConfig(rc config.RetryConfig) retry.Config {
	cfg := retry.DefaultConfig()
	if rc.MaxRetries > 0 {
		cfg.MaxRetries = rc.MaxRetries
	}
	if rc.InitialDelayMS >= 0 {
		cfg.InitialDelay = time.Duration(rc.InitialDelayMS) * time.Millisecond
	}
	if rc.MaxDelayMS > 0 {
		cfg.MaxDelay = time.Duration(rc.MaxDelayMS) * time.Millisecond
	}
	if rc.BackoffMultiplier >= 1 {
		cfg.BackoffMultiplier = rc.BackoffMultiplier
	}
	if rc.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(rc.TimeoutMS) * time.Millisecond
	}
	return cfg
}

// deriveTitle truncates by rune so a multibyte character never gets split.
func deriveTitle(text string) string {
	const maxLen = 40
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
