// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestProcessSampler(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	assert := assert.New(t)

	s := NewProcessSampler(time.Second)
	assert.Empty(s.Snapshot())

	assert.NoError(s.Start())
	assert.NoError(s.Start())
	snapshot := s.Snapshot()
	assert.Contains(snapshot, "process.memory.heap_alloc")
	assert.Contains(snapshot, "process.memory.sys")
	assert.Contains(snapshot, "process.goroutines")

	snapshot["process.goroutines"] = -1
	assert.NotEqual(-1, s.Snapshot()["process.goroutines"])

	s.Stop()
	s.Stop()
	assert.NotEmpty(s.Snapshot())
}

func TestProcessSamplerDefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultProcessSampleInterval, NewProcessSampler(0).interval)
	var s *ProcessSampler
	s.stop()
}
