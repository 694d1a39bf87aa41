package lifecycle

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/alexherrero/sherwood-engine/errs"
	"github.com/alexherrero/sherwood-engine/notifications"
)

// Service is a named, lifecycle-managed component. GracefulShutdown begins
// the service's own termination and returns a channel that is sent a
// single error (or nil) on completion. A service that is already terminal
// may return a nil channel instead of allocating one.
type Service interface {
	Name() string
	GracefulShutdown() <-chan error
}

// ShutdownService is the registry of Services driven through termination
// as one phase of the engine's graceful shutdown.
type ShutdownService struct {
	mu          sync.Mutex
	services    []Service
	names       map[string]bool
	terminating bool

	notifications *notifications.Log
}

// NewShutdownService creates an empty, non-terminating ShutdownService.
func NewShutdownService() *ShutdownService {
	return &ShutdownService{names: make(map[string]bool)}
}

// SetNotifications installs the operational log that Register failures and
// service shutdown errors are recorded to. Nil-safe: a nil or never-set log
// just means nothing is recorded.
func (s *ShutdownService) SetNotifications(log *notifications.Log) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = log
}

// Register adds svc to the registry. Rejected with errs.DuplicateService if
// a service of that name is already registered, or if the registry is
// already terminating.
func (s *ShutdownService) Register(svc Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminating {
		err := errs.New(errs.DuplicateService, fmt.Sprintf("cannot register %q: shutdown already in progress", svc.Name()))
		s.notify(err.Msg)
		return err
	}
	if s.names[svc.Name()] {
		err := errs.New(errs.DuplicateService, fmt.Sprintf("service %q is already registered", svc.Name()))
		s.notify(err.Msg)
		return err
	}

	s.names[svc.Name()] = true
	s.services = append(s.services, svc)
	return nil
}

// notify records a warning-level notification if a Log has been installed.
// Caller must hold s.mu.
func (s *ShutdownService) notify(message string) {
	if s.notifications != nil {
		s.notifications.Warn("service registration failed", message)
	}
}

// GracefulShutdown sets the terminating flag, then invokes GracefulShutdown
// on every registered service concurrently and awaits all of their
// completion signals. A service whose signal resolves with an error is
// logged; it does not stop the other services from finishing.
func (s *ShutdownService) GracefulShutdown() {
	s.mu.Lock()
	s.terminating = true
	services := make([]Service, len(s.services))
	copy(services, s.services)
	notifLog := s.notifications
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(services))
	for _, svc := range services {
		go func(svc Service) {
			defer wg.Done()

			ch := svc.GracefulShutdown()
			if ch == nil {
				return
			}
			if err := <-ch; err != nil {
				log.Error().Err(err).Str("service", svc.Name()).Msg("service shutdown reported an error")
				if notifLog != nil {
					notifLog.Err("service shutdown failed", fmt.Sprintf("%s: %v", svc.Name(), err))
				}
			}
		}(svc)
	}
	wg.Wait()
}
