package lifecycle

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexherrero/sherwood-engine/errs"
	"github.com/alexherrero/sherwood-engine/notifications"
)

type fakeService struct {
	name     string
	done     chan error
	deadline *int32 // optional: signals test that GracefulShutdown was invoked
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) GracefulShutdown() <-chan error {
	if s.deadline != nil {
		atomic.AddInt32(s.deadline, 1)
	}
	return s.done
}

type alreadyDoneService struct{ name string }

func (s *alreadyDoneService) Name() string                    { return s.name }
func (s *alreadyDoneService) GracefulShutdown() <-chan error { return nil }

func TestShutdownService_RegisterRejectsDuplicateNames(t *testing.T) {
	s := NewShutdownService()
	require.NoError(t, s.Register(&alreadyDoneService{name: "svc-a"}))

	err := s.Register(&alreadyDoneService{name: "svc-a"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.DuplicateService))
}

func TestShutdownService_RegisterRejectedWhileTerminating(t *testing.T) {
	s := NewShutdownService()
	s.GracefulShutdown()

	err := s.Register(&alreadyDoneService{name: "late"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.DuplicateService))
}

func TestShutdownService_AwaitsAllServices(t *testing.T) {
	s := NewShutdownService()

	ch1 := make(chan error, 1)
	ch2 := make(chan error, 1)
	require.NoError(t, s.Register(&fakeService{name: "a", done: ch1}))
	require.NoError(t, s.Register(&fakeService{name: "b", done: ch2}))
	require.NoError(t, s.Register(&alreadyDoneService{name: "c"}))

	go func() {
		time.Sleep(10 * time.Millisecond)
		ch1 <- nil
		ch2 <- errors.New("b failed")
	}()

	finished := make(chan struct{})
	go func() {
		s.GracefulShutdown()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("GracefulShutdown did not return once all services resolved")
	}
}

func TestShutdownService_RegisterFailureRecordsNotification(t *testing.T) {
	s := NewShutdownService()
	log := notifications.NewLog(0)
	s.SetNotifications(log)

	require.NoError(t, s.Register(&alreadyDoneService{name: "svc-a"}))
	require.Error(t, s.Register(&alreadyDoneService{name: "svc-a"}))

	recent := log.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, notifications.Warning, recent[0].Level)
}

func TestShutdownService_ServiceShutdownErrorRecordsNotification(t *testing.T) {
	s := NewShutdownService()
	log := notifications.NewLog(0)
	s.SetNotifications(log)

	failing := make(chan error, 1)
	failing <- errors.New("boom")
	require.NoError(t, s.Register(&fakeService{name: "failing", done: failing}))

	s.GracefulShutdown()

	recent := log.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, notifications.Error, recent[0].Level)
	assert.Contains(t, recent[0].Message, "failing")
}

func TestShutdownService_OneServiceErrorDoesNotBlockOthers(t *testing.T) {
	s := NewShutdownService()

	failing := make(chan error, 1)
	failing <- errors.New("boom")
	require.NoError(t, s.Register(&fakeService{name: "failing", done: failing}))

	ok := make(chan error, 1)
	ok <- nil
	require.NoError(t, s.Register(&fakeService{name: "ok", done: ok}))

	done := make(chan struct{})
	go func() {
		s.GracefulShutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a failing service blocked the others from completing")
	}
}
