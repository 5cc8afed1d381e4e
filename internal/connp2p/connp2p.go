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

// Package connp2p implements the dispatch.Connection contract for a P2P
// (GPU-to-GPU memory copy) transport. Put performs the copy; Signal and
// Flush use futex wait/wake so the connection's own completion wait can
// block instead of spinning, which spec §5 explicitly allows at the
// connection level even though the FIFO hot loop above it never blocks.
package connp2p

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/AtlantaPepsi/mscclpp/internal/dispatch"
)

// ErrConnectionClosed is returned by Put/Signal/Flush after Close.
var ErrConnectionClosed = errors.New("connp2p: connection closed")

var _ dispatch.Connection = (*Connection)(nil)

// copyJob is one queued Put, applied by the connection's worker goroutine
// in submission order -- the P2P analogue of a GPU copy engine's command
// queue.
type copyJob struct {
	dst, src, size uint32
}

// Connection is a P2P transport: local and remote are the two peers'
// memory regions (remote stands in for the other GPU's mapped buffer).
// Puts are queued and applied asynchronously by a worker goroutine;
// completedSeq tracks how many have landed and is the futex word Flush
// waits on. flagSeq is the word Signal bumps and peers would wait on for
// a remote flag increment; it is exposed via FlagSeq for a peer to poll.
type Connection struct {
	local, remote []byte

	jobs chan copyJob

	postedSeq    uint32
	completedSeq uint32
	flagSeq      uint32

	closed atomic.Bool
	done   chan struct{}
}

// New constructs a Connection copying from local into remote. Both slices
// are owned by the caller and must outlive the Connection.
func New(local, remote []byte) *Connection {
	c := &Connection{
		local:  local,
		remote: remote,
		jobs:   make(chan copyJob, 256),
		done:   make(chan struct{}),
	}
	go c.worker()
	return c
}

func (c *Connection) worker() {
	defer close(c.done)
	for job := range c.jobs {
		copy(c.remote[job.dst:job.dst+job.size], c.local[job.src:job.src+job.size])
		atomic.AddUint32(&c.completedSeq, 1)
		futexWake(&c.completedSeq, 1)
	}
}

// Put enqueues a one-sided copy from local[src:src+size] into
// remote[dst:dst+size].
func (c *Connection) Put(dst, src, size uint32) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if int(dst+size) > len(c.remote) || int(src+size) > len(c.local) {
		return fmt.Errorf("connp2p: put out of range: dst=%d src=%d size=%d", dst, src, size)
	}
	atomic.AddUint32(&c.postedSeq, 1)
	c.jobs <- copyJob{dst: dst, src: src, size: size}
	return nil
}

// Signal posts a remote flag increment: bump flagSeq and wake anyone
// parked on it via futexWait.
func (c *Connection) Signal() error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	atomic.AddUint32(&c.flagSeq, 1)
	return futexWake(&c.flagSeq, 1)
}

// Flush blocks until every Put posted so far has completed.
func (c *Connection) Flush() error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	posted := atomic.LoadUint32(&c.postedSeq)
	for atomic.LoadUint32(&c.completedSeq) < posted {
		if c.closed.Load() {
			return ErrConnectionClosed
		}
		if err := futexWait(&c.completedSeq, atomic.LoadUint32(&c.completedSeq)); err != nil {
			return err
		}
	}
	return nil
}

// FlagSeq returns the current value of the remote-flag sequence, for a
// peer's own Wait-style polling.
func (c *Connection) FlagSeq() uint32 { return atomic.LoadUint32(&c.flagSeq) }

// Close stops accepting new Puts and waits for the worker to drain.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.jobs)
	<-c.done
	futexWake(&c.completedSeq, 1<<30)
	return nil
}
