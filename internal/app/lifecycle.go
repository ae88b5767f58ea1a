package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"options-mm-go/infrastructure/logger"
	"options-mm-go/internal/engine"
)

// Lifecycle is one component the container starts and stops.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

// LifecycleManager starts components in registration order and stops
// them in reverse. A failed start rolls back everything already
// started.
type LifecycleManager struct {
	components []Lifecycle
	mu         sync.RWMutex
}

// NewLifecycleManager returns an empty manager.
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{components: make([]Lifecycle, 0)}
}

// Register appends one component. Order matters: the engine goes last
// so the reverse stop tears it down first.
func (m *LifecycleManager) Register(component Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component)
}

// StartAll starts every component in order.
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				m.components[j].Stop()
			}
			return fmt.Errorf("start component %d: %w", i, err)
		}
	}
	return nil
}

// StopAll stops every component in reverse order, remembering the last
// error so one bad shutdown does not skip the rest.
func (m *LifecycleManager) StopAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var lastErr error
	for i := len(m.components) - 1; i >= 0; i-- {
		if err := m.components[i].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// CheckHealth asks every component; the first failure wins.
func (m *LifecycleManager) CheckHealth() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Health(); err != nil {
			return fmt.Errorf("component %d unhealthy: %w", i, err)
		}
	}
	return nil
}

// httpServerComponent serves one handler on its own listener.
type httpServerComponent struct {
	name    string
	handler http.Handler
	addr    string
	logger  *logger.Logger
	server  **http.Server
	started bool
	mu      sync.Mutex
}

func (h *httpServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}

	srv := &http.Server{
		Addr:    h.addr,
		Handler: h.handler,
	}
	*h.server = srv

	go func() {
		h.logger.Info("listening", zap.String("component", h.name), zap.String("addr", h.addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.LogError(err, "listen", map[string]interface{}{"component": h.name})
		}
	}()

	h.started = true
	return nil
}

func (h *httpServerComponent) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started || *h.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := (*h.server).Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown: %w", h.name, err)
	}

	h.logger.Info("stopped", zap.String("component", h.name))
	h.started = false
	return nil
}

func (h *httpServerComponent) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return fmt.Errorf("%s not started", h.name)
	}
	return nil
}

// loopComponent runs one blocking loop on its own goroutine. Stop
// cancels the loop's context and waits for it to drain.
type loopComponent struct {
	name   string
	run    func(ctx context.Context) error
	logger *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func (l *loopComponent) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	done := l.done

	go func() {
		defer close(done)
		if err := l.run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.LogError(err, l.name, nil)
		}
	}()

	l.started = true
	return nil
}

func (l *loopComponent) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return nil
	}
	l.cancel()
	select {
	case <-l.done:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("%s did not drain in time", l.name)
	}
	l.started = false
	return nil
}

func (l *loopComponent) Health() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return fmt.Errorf("%s not started", l.name)
	}
	select {
	case <-l.done:
		return fmt.Errorf("%s exited", l.name)
	default:
		return nil
	}
}

// engineComponent adapts the trading engine's own lifecycle.
type engineComponent struct {
	eng *engine.Engine
}

func (e *engineComponent) Start(ctx context.Context) error { return e.eng.Start(ctx) }

func (e *engineComponent) Stop() error { return e.eng.Stop() }

func (e *engineComponent) Health() error {
	if state := e.eng.GetState(); state != engine.StateRunning {
		return fmt.Errorf("engine %s", state)
	}
	return nil
}
