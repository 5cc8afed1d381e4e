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

// Package dispatch decodes a trigger's opcode mask and invokes the
// matching operations on a host connection, in the fixed Data, Flag, Sync
// order described in spec §4.3.
package dispatch

import (
	"github.com/AtlantaPepsi/mscclpp/internal/errs"
	"github.com/AtlantaPepsi/mscclpp/internal/trigger"
)

// Connection is the set of synchronous operations every transport
// (P2P, IB) exposes to the proxy loop.
type Connection interface {
	// Put enqueues a one-sided write: dstOffset and srcOffset address the
	// peer's and the local side's data regions, size is the byte count.
	Put(dstOffset, srcOffset, size uint32) error
	// Signal posts a remote flag increment.
	Signal() error
	// Flush blocks until all previously posted operations on this
	// connection complete.
	Flush() error
}

// Dispatch runs t against conn in the order Data, then Flag, then Sync,
// stopping at the first error. A combined-flag trigger therefore encodes
// "put, then signal, then wait for completion" in a single call.
func Dispatch(t trigger.Trigger, conn Connection) error {
	if t.Type&trigger.Data != 0 {
		if err := conn.Put(t.DstDataOffset, t.SrcDataOffset, t.DataSize); err != nil {
			return errs.Transport("put", t.ConnID, err)
		}
	}
	if t.Type&trigger.Flag != 0 {
		if err := conn.Signal(); err != nil {
			return errs.Transport("signal", t.ConnID, err)
		}
	}
	if t.Type&trigger.Sync != 0 {
		if err := conn.Flush(); err != nil {
			return errs.Transport("flush", t.ConnID, err)
		}
	}
	return nil
}
