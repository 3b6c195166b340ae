// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"fmt"
	"maps"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// DefaultProcessSampleInterval is used if no sampling interval is configured.
const DefaultProcessSampleInterval = 10 * time.Second

// ProcessSampler keeps a periodically refreshed snapshot of process memory statistics.
// Start begins sampling, Stop ends it. Snapshot may be called any time, from any goroutine.
type ProcessSampler struct {
	interval time.Duration

	mu       sync.RWMutex
	snapshot map[string]any
	cron     *cron.Cron
}

// NewProcessSampler creates a sampler. Not started.
func NewProcessSampler(interval time.Duration) *ProcessSampler {
	if interval <= 0 {
		interval = DefaultProcessSampleInterval
	}
	return &ProcessSampler{interval: interval, snapshot: map[string]any{}}
}

// Start takes a sample, then schedules sampling at every interval. Starting a started sampler does nothing.
func (s *ProcessSampler) Start() error {
	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), s.sample); err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "failed to schedule process sampling")
	}
	s.cron = c
	s.mu.Unlock()

	s.sample()
	c.Start()
	return nil
}

// Stop cancels sampling and waits for a running sample to complete. The last snapshot is kept.
func (s *ProcessSampler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// stop is Stop, allowing nil sampler.
func (s *ProcessSampler) stop() {
	if s != nil {
		s.Stop()
	}
}

// Snapshot returns the fields of the last sample.
func (s *ProcessSampler) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.snapshot)
}

func (s *ProcessSampler) sample() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	snapshot := map[string]any{
		"process.memory.heap_alloc": int64(m.HeapAlloc),
		"process.memory.heap_sys":   int64(m.HeapSys),
		"process.memory.sys":        int64(m.Sys),
		"process.memory.num_gc":     int64(m.NumGC),
		"process.goroutines":        runtime.NumGoroutine(),
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
}
