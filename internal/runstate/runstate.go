/*
 *
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package runstate holds the three-valued proxy run-state word described
// in spec §4.4: Running -> Exiting -> Idle, strictly ordered, with
// exactly one writer per transition (the external controller writes
// Exiting, the service goroutine writes Idle).
package runstate

import "sync/atomic"

// State is one of the three run-state values.
type State int32

const (
	// Running: the service loop is polling its FIFO.
	Running State = iota
	// Exiting: an external request asked the service loop to stop; it has
	// not yet observed the request.
	Exiting
	// Idle: the service loop has drained, flushed, and returned; the
	// proxy may be torn down.
	Idle
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Exiting:
		return "Exiting"
	case Idle:
		return "Idle"
	default:
		return "Unknown"
	}
}

// Word is an atomic run-state cell. Go's sync/atomic loads and stores are
// sequentially consistent, which is strictly stronger than the
// acquire/release pairing spec §9 calls for between the service goroutine
// (writer of Idle) and external waiters (readers): a waiter that observes
// Idle via Load is guaranteed to see every store the service goroutine
// made before it, with no separate fence required. We still name the
// methods Load/Store rather than hide that behind a mutex, so a future
// port to a weaker-ordering runtime has to re-derive the requirement
// explicitly rather than silently lose it.
type Word struct {
	v atomic.Int32
}

// New returns a Word initialized to Running, matching the lifecycle in
// spec §3: "A proxy is created with run=Running and a spawned thread."
func New() *Word {
	w := &Word{}
	w.v.Store(int32(Running))
	return w
}

// Load reads the current state.
func (w *Word) Load() State {
	return State(w.v.Load())
}

// Store writes a new state unconditionally. Only the service goroutine
// should ever store Idle; only an external controller should store
// Exiting.
func (w *Word) Store(s State) {
	w.v.Store(int32(s))
}
