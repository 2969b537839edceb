package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/sprinkler/pkg/client"
)

const (
	eventChannelSize     = 100
	eventDedupWindow     = 5 * time.Second
	eventMapMaxSize      = 1000
	reconnectBackoff     = 30 * time.Second
	maxReconnectBackoff  = 5 * time.Minute
	maxReconnectAttempts = 100
)

// eventMonitor subscribes to pull request events for one org over the
// sprinkler WebSocket feed and hands PR URLs to the bot.
type eventMonitor struct {
	bot          *Bot
	org          string
	eventChan    chan string
	stopChan     chan struct{}
	lastEventMap map[string]time.Time
	mu           sync.Mutex
	attempts     int
	running      bool
}

func newEventMonitor(bot *Bot, org string) *eventMonitor {
	return &eventMonitor{
		bot:          bot,
		org:          org,
		eventChan:    make(chan string, eventChannelSize),
		stopChan:     make(chan struct{}),
		lastEventMap: make(map[string]time.Time),
	}
}

// start launches the event processor and the connection manager.
func (m *eventMonitor) start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.mu.Unlock()

	slog.Info("Starting event monitor", "component", "monitor", "org", m.org)
	go m.processEvents(ctx)
	go m.manageConnection(ctx)
	return nil
}

func (m *eventMonitor) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stopChan)
}

// processEvents drains the event channel and processes each PR.
func (m *eventMonitor) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case prURL := <-m.eventChan:
			m.bot.processPR(ctx, prURL)
		}
	}
}

// manageConnection keeps the WebSocket session alive, restarting it with
// linear backoff when the client gives up. The sprinkler client retries
// internally; this loop only handles fatal exits.
func (m *eventMonitor) manageConnection(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		default:
		}

		err := m.connect(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}

		m.mu.Lock()
		m.attempts++
		attempts := m.attempts
		m.mu.Unlock()

		if attempts >= maxReconnectAttempts {
			slog.Error("Max reconnection attempts reached, giving up", "component", "monitor", "org", m.org, "attempts", attempts)
			return
		}

		backoff := reconnectBackoff * time.Duration(attempts)
		if backoff > maxReconnectBackoff {
			backoff = maxReconnectBackoff
		}
		slog.Warn("Event stream dropped, restarting after backoff",
			"component", "monitor", "org", m.org, "attempt", attempts, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-time.After(backoff):
		}
	}
}

// connect runs one WebSocket session; it blocks until the session ends.
func (m *eventMonitor) connect(ctx context.Context) error {
	cfg := client.Config{
		ServerURL:    "wss://" + client.DefaultServerAddress + "/ws",
		Organization: m.org,
		TokenProvider: func() (string, error) {
			token, err := m.bot.client.Token(ctx)
			if err != nil {
				return "", fmt.Errorf("failed to get token: %w", err)
			}
			return token, nil
		},
		EventTypes: []string{"pull_request"},
		OnConnect: func() {
			m.mu.Lock()
			m.attempts = 0
			m.mu.Unlock()
			slog.Info("Event stream connected", "component", "monitor", "org", m.org)
		},
		OnDisconnect: func(err error) {
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("Event stream disconnected", "component", "monitor", "org", m.org, "error", err)
			}
		},
		OnEvent: func(event client.Event) {
			m.handleEvent(event)
		},
	}

	wsClient, err := client.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create event client: %w", err)
	}

	start := time.Now()
	err = wsClient.Start(ctx)
	slog.Info("Event stream session ended", "component", "monitor", "org", m.org,
		"uptime", time.Since(start).Round(time.Second), "error", err)
	return err
}

// handleEvent filters and dedupes one incoming event.
func (m *eventMonitor) handleEvent(event client.Event) {
	if event.Type != "pull_request" || event.URL == "" {
		return
	}

	// URL format: https://github.com/org/repo/pull/123
	parts := strings.Split(event.URL, "/")
	const minParts = 5
	if len(parts) < minParts || parts[2] != "github.com" {
		slog.Warn("Unparseable event URL", "component", "monitor", "url", event.URL)
		return
	}
	if parts[3] != m.org {
		return
	}

	m.mu.Lock()
	now := time.Now()
	if last, ok := m.lastEventMap[event.URL]; ok && now.Sub(last) < eventDedupWindow {
		m.mu.Unlock()
		return
	}
	if len(m.lastEventMap) >= eventMapMaxSize {
		m.lastEventMap = make(map[string]time.Time)
	}
	m.lastEventMap[event.URL] = now
	m.mu.Unlock()

	select {
	case m.eventChan <- event.URL:
	default:
		slog.Warn("Event channel full, dropping event", "component", "monitor", "url", event.URL)
	}
}
