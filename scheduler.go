package botzie

import (
	"sync"
	"time"

	"github.com/manovDev/agario-botzie/logging"
)

// BotHandle addresses one bot through its owning session. Tasks hold handles
// instead of bot pointers, so a task that outlives its session resolves to
// nothing instead of mutating a removed bot.
type BotHandle struct {
	SessionID  string
	Generation uint64
	Index      int
}

// botStepper applies state machine work to the bot behind a handle. Both
// methods report false once the handle is stale.
type botStepper interface {
	ConnectBot(handle BotHandle, now time.Time) bool
	StepBot(handle BotHandle, now time.Time) bool
}

// Scheduler owns one recurring tick per live bot.
type Scheduler struct {
	interval time.Duration
	clock    logging.Clock
	stepper  botStepper
}

func newScheduler(interval time.Duration, clock logging.Clock, stepper botStepper) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if clock == nil {
		clock = logging.SystemClock{}
	}
	return &Scheduler{interval: interval, clock: clock, stepper: stepper}
}

// Interval reports the uniform tick period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Task is the cancellable schedule of a single bot.
type Task struct {
	handle BotHandle
	cancel chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Schedule starts the task for handle. The bot stays inert for connectDelay,
// then connects and ticks every interval until cancelled or stale.
func (s *Scheduler) Schedule(handle BotHandle, connectDelay time.Duration) *Task {
	task := &Task{
		handle: handle,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run(task, connectDelay)
	return task
}

func (s *Scheduler) run(task *Task, connectDelay time.Duration) {
	defer close(task.done)

	if connectDelay < 0 {
		connectDelay = 0
	}
	timer := time.NewTimer(connectDelay)
	defer timer.Stop()

	select {
	case <-task.cancel:
		return
	case <-timer.C:
	}

	if !s.stepper.ConnectBot(task.handle, s.clock.Now()) {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-task.cancel:
			return
		case <-ticker.C:
			if !s.stepper.StepBot(task.handle, s.clock.Now()) {
				return
			}
		}
	}
}

// Cancel signals the task to stop without waiting.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.cancel) })
}

// Stop cancels the task and waits until its goroutine has exited.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.Cancel()
	<-t.done
}

// Done is closed once the task goroutine exits.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// stopTasks cancels every task first and then joins them, so teardown time
// does not grow with the number of bots.
func stopTasks(tasks []*Task) {
	for _, task := range tasks {
		task.Cancel()
	}
	for _, task := range tasks {
		if task != nil {
			<-task.done
		}
	}
}
