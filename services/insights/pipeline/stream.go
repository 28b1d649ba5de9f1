// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"sync"

	"github.com/wizelai/insights/services/insights/datatypes"
)

// DefaultEmitterBuffer is the event channel capacity. Large enough to
// absorb a burst of analysis chunks, small enough that a stalled
// consumer exerts backpressure on the model stream.
const DefaultEmitterBuffer = 64

// Emitter owns the streaming delivery invariant: every stream carries
// exactly one terminal event, nothing follows it, and the channel
// closes after it. The pipeline produces into the Emitter; the SSE
// handler consumes from Events().
//
// # Thread Safety
//
// One producer goroutine and one consumer goroutine. The pipeline
// emits sequentially; the mutex only guards terminal bookkeeping so
// Dropped() can be read from other goroutines.
type Emitter struct {
	ch chan datatypes.StreamEvent

	mu       sync.Mutex
	terminal bool
	dropped  int
}

// NewEmitter creates an Emitter with the given channel capacity; zero
// or negative uses DefaultEmitterBuffer.
func NewEmitter(buffer int) *Emitter {
	if buffer <= 0 {
		buffer = DefaultEmitterBuffer
	}
	return &Emitter{ch: make(chan datatypes.StreamEvent, buffer)}
}

// Events is the consumer side. The channel closes after the terminal
// event is delivered.
func (e *Emitter) Events() <-chan datatypes.StreamEvent {
	return e.ch
}

// Emit sends one event. It returns false, dropping the event, when a
// terminal event has already been sent or when ctx is done before the
// channel accepts it. Emitting a terminal event closes the channel.
func (e *Emitter) Emit(ctx context.Context, ev datatypes.StreamEvent) bool {
	e.mu.Lock()
	if e.terminal {
		e.dropped++
		e.mu.Unlock()
		return false
	}
	if ev.Terminal() {
		e.terminal = true
	}
	e.mu.Unlock()

	select {
	case e.ch <- ev:
		if ev.Terminal() {
			close(e.ch)
		}
		return true
	case <-ctx.Done():
		if ev.Terminal() {
			// Consumer is gone; close so any drain loop exits.
			close(e.ch)
		}
		return false
	}
}

// Dropped reports how many events arrived after the terminal event.
// Anything above zero indicates a producer bug worth logging.
func (e *Emitter) Dropped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}
