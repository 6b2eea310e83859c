package dispatch

import "sync/atomic"

// ShutdownCoordinator is the process-wide abort signal. It is flipped once by
// the process lifecycle and polled by the dispatcher between posts; there is
// no finer-grained cancellation.
type ShutdownCoordinator struct {
	shuttingDown atomic.Bool
}

func NewShutdownCoordinator() *ShutdownCoordinator {
	return &ShutdownCoordinator{}
}

func (s *ShutdownCoordinator) Begin() {
	s.shuttingDown.Store(true)
}

func (s *ShutdownCoordinator) InProgress() bool {
	return s.shuttingDown.Load()
}
