package poller

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Task is one run of a periodic job. It must return when ctx is canceled.
type Task func(ctx context.Context) error

// Poller runs a task on a fixed interval. A new tick cancels the run that is
// still in flight, so only the latest tick does work.
type Poller struct {
	name     string
	interval time.Duration
	task     Task

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	cancelRun context.CancelFunc
	seq       uint64
	loop      sync.WaitGroup
	runs      sync.WaitGroup
}

func New(name string, interval time.Duration, task Task) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		name:     name,
		interval: interval,
		task:     task,
	}
}

// Start runs the task once right away and then on every tick until Stop
// is called or parent is canceled.
func (p *Poller) Start(parent context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})

	ctx, cancel := context.WithCancel(parent)
	log.Infof("[Poller] %s started (interval=%s)", p.name, p.interval)

	p.loop.Add(1)
	go func(stopCh chan struct{}) {
		defer p.loop.Done()
		defer cancel()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.trigger(ctx)
		for {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.trigger(ctx)
			}
		}
	}(p.stopCh)
}

// Trigger starts a run immediately, canceling the one in flight.
func (p *Poller) Trigger(ctx context.Context) {
	p.trigger(ctx)
}

func (p *Poller) trigger(parent context.Context) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	if p.cancelRun != nil {
		p.cancelRun()
	}
	runCtx, cancel := context.WithCancel(parent)
	p.cancelRun = cancel
	p.seq++
	seq := p.seq
	p.runs.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.runs.Done()
		defer cancel()

		err := p.task(runCtx)
		switch {
		case err == nil:
		case runCtx.Err() != nil:
			log.Debugf("[Poller] %s run #%d superseded: %v", p.name, seq, err)
		default:
			log.Errorf("[Poller] %s run #%d failed: %v", p.name, seq, err)
		}
	}()
}

// Stop cancels the in-flight run and waits for everything to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	if p.cancelRun != nil {
		p.cancelRun()
		p.cancelRun = nil
	}
	p.mu.Unlock()

	p.loop.Wait()
	p.runs.Wait()
	log.Infof("[Poller] %s stopped", p.name)
}

// IsRunning reports whether Start was called without a matching Stop.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
