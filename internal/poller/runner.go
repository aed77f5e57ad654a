package poller

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Fetch выполняет один запрос опроса. Отмена контекста не считается сбоем.
type Fetch func(ctx context.Context) error

// Runner управляет циклом опроса одного табло: гоняет машину состояний
// реальными таймерами и держит не более одного запроса в полёте.
type Runner struct {
	machine *Machine
	fetch   Fetch
	logger  *zap.Logger

	suspendCh chan struct{}
	resumeCh  chan struct{}
}

// NewRunner создаёт раннер для указанной машины и функции опроса.
func NewRunner(machine *Machine, fetch Fetch, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		machine:   machine,
		fetch:     fetch,
		logger:    logger,
		suspendCh: make(chan struct{}, 1),
		resumeCh:  make(chan struct{}, 1),
	}
}

// Suspend приостанавливает опрос: табло скрыто или сеть недоступна.
func (r *Runner) Suspend() {
	select {
	case r.suspendCh <- struct{}{}:
	default:
	}
}

// Resume возобновляет опрос: следующий запрос уходит немедленно.
func (r *Runner) Resume() {
	select {
	case r.resumeCh <- struct{}{}:
	default:
	}
}

// Run крутит цикл опроса до отмены контекста. Первый запрос уходит сразу.
func (r *Runner) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	results := make(chan error, 1)
	var cancelFetch context.CancelFunc

	cancelInFlight := func() {
		if cancelFetch != nil {
			cancelFetch()
			cancelFetch = nil
		}
	}
	defer cancelInFlight()

	for {
		select {
		case <-ctx.Done():
			return

		case <-timer.C:
			start, retry := r.machine.Tick()
			if start {
				fetchCtx, cancel := context.WithCancel(ctx)
				cancelFetch = cancel
				go func() {
					results <- r.fetch(fetchCtx)
				}()
			} else if retry > 0 {
				timer.Reset(retry)
			}

		case err := <-results:
			cancelInFlight()

			var delay time.Duration
			var reschedule bool
			switch {
			case err == nil:
				delay, reschedule = r.machine.Success()
			case errors.Is(err, context.Canceled):
				delay, reschedule = r.machine.Cancelled()
			default:
				r.logger.Warn("poll failed", zap.Error(err))
				delay, reschedule = r.machine.Failure()
			}
			if reschedule {
				timer.Reset(delay)
			}

		case <-r.suspendCh:
			r.machine.Suspend()
			cancelInFlight()
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}

		case <-r.resumeCh:
			if r.machine.Resume() {
				timer.Reset(0)
			}
		}
	}
}
