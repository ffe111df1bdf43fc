package sandbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	memorySampleInterval = 100 * time.Millisecond

	// monitorLifetimeFactor bounds the sampling loop to 1.5x the time limit
	// so monitoring can never outlive its container.
	monitorLifetimeFactor = 1.5

	// minMemoryKiB is reported when no sample was captured; peak memory is
	// never zero for a program that actually ran.
	minMemoryKiB = 1
)

// memoryMonitor samples a box's memory usage on a fixed interval, tracking
// the maximum observed value. It stops on signal, on context cancellation,
// or when its bounded lifetime elapses, whichever comes first.
type memoryMonitor struct {
	peak     atomic.Int64
	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

func startMemoryMonitor(ctx context.Context, box Box, lifetime time.Duration) *memoryMonitor {
	m := &memoryMonitor{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go func() {
		defer close(m.doneCh)
		ticker := time.NewTicker(memorySampleInterval)
		defer ticker.Stop()
		deadline := time.NewTimer(lifetime)
		defer deadline.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-deadline.C:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				usage, err := box.MemoryUsage(ctx)
				if err != nil {
					continue
				}
				if usage > m.peak.Load() {
					m.peak.Store(usage)
				}
			}
		}
	}()
	return m
}

// stop halts sampling and waits for the loop to exit.
func (m *memoryMonitor) stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

// peakKiB returns the maximum observed usage in kibibytes, floored at a
// minimal non-zero value.
func (m *memoryMonitor) peakKiB() int64 {
	kib := m.peak.Load() / 1024
	if kib < minMemoryKiB {
		kib = minMemoryKiB
	}
	return kib
}

func monitorLifetime(timeLimit time.Duration) time.Duration {
	return time.Duration(float64(timeLimit) * monitorLifetimeFactor)
}
