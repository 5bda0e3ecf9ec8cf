package service

import (
	"context"
	"sync"
	"time"

	"paletten_hub/internal/logger"
)

// Job is a unit of work run on a lane. ctx is cancelled when draining
// exceeds the shutdown deadline.
type Job func(ctx context.Context)

// Lanes runs jobs on one goroutine per key: jobs with the same key run in
// submission order, jobs with different keys run independently.
type Lanes struct {
	buffer int
	log    *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// sendMu is held shared by senders and exclusively while lanes close;
	// mu only guards the map, so Len never waits on a full lane.
	sendMu    sync.RWMutex
	closing   chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	lanes  map[string]chan Job
	closed bool
	wg     sync.WaitGroup
}

func NewLanes(buffer int, log *logger.Logger) *Lanes {
	if buffer <= 0 {
		buffer = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Lanes{
		buffer:  buffer,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		closing: make(chan struct{}),
		lanes:   make(map[string]chan Job),
	}
}

// Submit queues job on the lane of key, starting the lane if needed. It
// blocks while the lane is full and returns false once Close was called.
func (l *Lanes) Submit(key string, job Job) bool {
	l.sendMu.RLock()
	defer l.sendMu.RUnlock()

	ch, ok := l.lane(key)
	if !ok {
		return false
	}
	select {
	case ch <- job:
		return true
	case <-l.closing:
		return false
	}
}

// lane returns the queue of key, starting it if needed.
func (l *Lanes) lane(key string) (chan Job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, false
	}
	ch, ok := l.lanes[key]
	if !ok {
		ch = make(chan Job, l.buffer)
		l.lanes[key] = ch
		l.wg.Add(1)
		go l.run(key, ch)
	}
	return ch, true
}

func (l *Lanes) run(key string, ch <-chan Job) {
	defer l.wg.Done()
	for job := range ch {
		l.exec(key, job)
	}
}

func (l *Lanes) exec(key string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorw("lane_job_panic", "lane", key, "panic", r)
		}
	}()
	job(l.ctx)
}

// Len returns the number of started lanes.
func (l *Lanes) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}

// Close stops accepting jobs and waits for queued ones to finish. If they do
// not finish within timeout their context is cancelled and Close waits for
// them to return. It reports whether the lanes drained in time.
func (l *Lanes) Close(timeout time.Duration) bool {
	l.closeOnce.Do(func() { close(l.closing) })

	l.sendMu.Lock()
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		for _, ch := range l.lanes {
			close(ch)
		}
	}
	l.mu.Unlock()
	l.sendMu.Unlock()

	drained := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(drained)
	}()

	defer l.cancel()
	select {
	case <-drained:
		return true
	case <-time.After(timeout):
		l.log.Warnw("lane_drain_timeout", "timeout", timeout.String())
		l.cancel()
		<-drained
		return false
	}
}
