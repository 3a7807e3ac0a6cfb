package client

import (
	"log"
	"time"
)

// scheduleReconnect bumps the drop-triggered attempt counter and, while under
// the retry bound, arms a timer for the next Connect. Past the bound no more
// backoff attempts are scheduled; the liveness poll keeps trying once per
// interval indefinitely, so recovery is still possible.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.attempt++
	attempt := m.attempt
	base := m.cfg.BackoffBase
	max := m.cfg.MaxRetries
	m.mu.Unlock()

	if attempt > max {
		log.Printf("client: reconnect attempt limit reached (%d), deferring to poll", max)
		return
	}

	delay := nextBackoffDelay(base, attempt)
	log.Printf("client: reconnect attempt %d/%d in %s", attempt, max, delay)

	timer := time.AfterFunc(delay, m.Connect)
	go func() {
		<-m.done
		timer.Stop()
	}()
}

// nextBackoffDelay returns the exponential backoff delay for the given
// 1-based attempt: base * 2^(attempt-1).
func nextBackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << uint(attempt-1)
}

// startPoll launches the unconditional liveness poll on first use. The poll
// calls Connect once per interval; Connect's idempotence makes the tick free
// while the socket is healthy, and it is the recovery path of last resort
// after the backoff attempts are exhausted.
func (m *Manager) startPoll() {
	m.pollOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(m.cfg.PollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-m.done:
					return
				case <-ticker.C:
					m.Connect()
				}
			}
		}()
	})
}
