// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"bytes"
	"io"
	"sync"
)

// capturedBody tees a response body: the reader gets every byte unchanged while a copy is kept.
// done is called once, when the body hits EOF or is closed, with the bytes read so far.
type capturedBody struct {
	body io.ReadCloser
	done func(body []byte)

	mu       sync.Mutex
	buf      bytes.Buffer
	finished bool
}

func captureBody(body io.ReadCloser, done func(body []byte)) io.ReadCloser {
	return &capturedBody{body: body, done: done}
}

// Read reads the underlying body.
func (b *capturedBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 {
		b.mu.Lock()
		if !b.finished {
			b.buf.Write(p[:n])
		}
		b.mu.Unlock()
	}
	if err == io.EOF {
		b.finish()
	}
	return n, err
}

// Close closes the underlying body.
func (b *capturedBody) Close() error {
	err := b.body.Close()
	b.finish()
	return err
}

func (b *capturedBody) finish() {
	b.mu.Lock()
	if b.finished {
		b.mu.Unlock()
		return
	}
	b.finished = true
	body := b.buf.Bytes()
	b.mu.Unlock()

	b.done(body)
}
