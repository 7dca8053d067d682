package wizard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Factory builds the controller for a new dialog.
type Factory func() (*Controller, error)

type dialogEntry struct {
	ctrl         *Controller
	lastActivity time.Time
}

// Registry hosts the dialogs of a process, one controller per dialog id.
// Dialogs idle longer than the inactivity timeout are dropped by the janitor.
type Registry struct {
	newController     Factory
	inactivityTimeout time.Duration
	logger            *slog.Logger
	now               func() time.Time

	mu      sync.RWMutex
	dialogs map[string]*dialogEntry
}

func NewRegistry(factory Factory, inactivityTimeout time.Duration, logger *slog.Logger) (*Registry, error) {
	if factory == nil {
		return nil, errors.New("wizard: controller factory must not be nil")
	}
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		newController:     factory,
		inactivityTimeout: inactivityTimeout,
		logger:            logger,
		now:               time.Now,
		dialogs:           make(map[string]*dialogEntry),
	}, nil
}

// Create starts a new dialog and returns its id.
func (r *Registry) Create() (string, *Controller, error) {
	ctrl, err := r.newController()
	if err != nil {
		return "", nil, err
	}
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialogs[id] = &dialogEntry{ctrl: ctrl, lastActivity: r.now().UTC()}
	return id, ctrl, nil
}

// Get returns the dialog's controller and marks it active.
func (r *Registry) Get(id string) (*Controller, error) {
	id = strings.TrimSpace(id)

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.dialogs[id]
	if !ok {
		return nil, newError(ErrorNotFound, "dialog_not_found", nil)
	}
	e.lastActivity = r.now().UTC()
	return e.ctrl, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.dialogs)
}

func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.expireInactive()
			}
		}
	}()
}

func (r *Registry) expireInactive() int {
	now := r.now().UTC()

	r.mu.Lock()
	expired := 0
	for id, e := range r.dialogs {
		if now.Sub(e.lastActivity) < r.inactivityTimeout {
			continue
		}
		delete(r.dialogs, id)
		expired++
	}
	r.mu.Unlock()

	if expired > 0 {
		r.logger.Info("wizard: expired inactive dialogs", "count", expired)
	}
	return expired
}
