package dashboard

import (
	"sync"
	"time"
)

// poller calls tick every interval until stopped. Ticks do not wait for the
// previous one, so a slow fetch overlaps the next.
type poller struct {
	interval time.Duration
	tick     func()
	stop     chan struct{}
	once     sync.Once
	done     chan struct{}
}

func startPoller(interval time.Duration, tick func()) *poller {
	p := &poller{
		interval: interval,
		tick:     tick,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *poller) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-p.stop:
			return
		}
	}
}

// Stop halts the ticker and waits for the loop to exit.
func (p *poller) Stop() {
	p.once.Do(func() { close(p.stop) })
	<-p.done
}
