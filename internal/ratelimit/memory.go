package ratelimit

import (
	"context"
	"sync"
	"time"
)

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

// Memory is a process-local Limiter. It is used when Redis is not
// configured and for the per-IP API limit.
type Memory struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	bucket   Bucket
	now      func() time.Time
	stop     chan struct{}
}

func NewMemory(b Bucket) *Memory {
	m := &Memory{
		visitors: make(map[string]*visitor),
		bucket:   b,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go m.cleanup()
	return m
}

func (m *Memory) Allow(ctx context.Context, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v, ok := m.visitors[key]
	if !ok {
		v = &visitor{tokens: float64(m.bucket.Burst), lastSeen: now}
		m.visitors[key] = v
	}
	var res Result
	v.tokens, res = m.bucket.take(v.tokens, v.lastSeen, now)
	v.lastSeen = now
	return res, nil
}

func (m *Memory) Close() {
	close(m.stop)
}

// cleanup forgets visitors whose bucket has had time to refill completely.
func (m *Memory) cleanup() {
	full := time.Duration(float64(m.bucket.Burst) / m.bucket.Rate * float64(time.Second))
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}
		m.mu.Lock()
		now := m.now()
		for key, v := range m.visitors {
			if now.Sub(v.lastSeen) > full {
				delete(m.visitors, key)
			}
		}
		m.mu.Unlock()
	}
}
