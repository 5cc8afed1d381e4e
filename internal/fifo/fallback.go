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

package fifo

import (
	"sync"
	"sync/atomic"

	"github.com/AtlantaPepsi/mscclpp/internal/trigger"
)

// copyStream stands in for a non-blocking CUDA-style stream used only to
// carry tailHost-to-tailDevice copies. Copies are queued and applied by a
// single worker goroutine in submission order, mirroring a real stream's
// in-order execution; Synchronize blocks until every queued copy has
// landed.
type copyStream struct {
	jobs chan uint64
	done chan struct{}
	wg   sync.WaitGroup
}

func newCopyStream(dst *uint64) *copyStream {
	s := &copyStream{
		jobs: make(chan uint64, 64),
		done: make(chan struct{}),
	}
	go func() {
		for v := range s.jobs {
			atomic.StoreUint64(dst, v)
			s.wg.Done()
		}
		close(s.done)
	}()
	return s
}

// enqueue schedules an async copy of v into the stream's destination.
func (s *copyStream) enqueue(v uint64) {
	s.wg.Add(1)
	s.jobs <- v
}

// synchronize blocks until every copy queued so far has been applied.
func (s *copyStream) synchronize() {
	s.wg.Wait()
}

func (s *copyStream) destroy() {
	close(s.jobs)
	<-s.done
}

// FallbackFifo is the placement variant used when GPU-direct mapping is
// unavailable: slots live in pinned host memory the device can read and
// write over PCIe, but tailDevice lives in device memory and can only be
// updated by an asynchronous host-to-device copy on a dedicated stream.
type FallbackFifo struct {
	r      *ring
	stream *copyStream
}

// NewFallback allocates a ring of the given power-of-two capacity and its
// companion non-blocking copy stream.
func NewFallback(capacity uint64) (*FallbackFifo, error) {
	r, err := newRing(capacity)
	if err != nil {
		return nil, err
	}
	f := &FallbackFifo{r: r}
	f.stream = newCopyStream(&r.tailDevice)
	return f, nil
}

func (f *FallbackFifo) Poll() (trigger.Trigger, bool) { return f.r.poll() }

func (f *FallbackFifo) Pop() { f.r.pop() }

// FlushTail queues an async copy of tailHost into tailDevice on the
// fallback stream. When sync is true it additionally blocks until that
// copy (and any queued before it) has landed, matching the
// cudaStreamSynchronize call the shutdown path makes with sync=true.
func (f *FallbackFifo) FlushTail(sync bool) {
	f.stream.enqueue(f.r.tailHost)
	if sync {
		f.stream.synchronize()
	}
}

func (f *FallbackFifo) TailHost() uint64 { return f.r.tailHost }

// Close destroys the copy stream and drains any outstanding copies first.
func (f *FallbackFifo) Close() error {
	f.stream.synchronize()
	f.stream.destroy()
	return nil
}

// PublishSlot exposes the producer-side push for test harnesses driving a
// simulated GPU kernel.
func (f *FallbackFifo) PublishSlot(t trigger.Trigger) { f.r.PublishSlot(t) }

// Head returns the producer-owned counter.
func (f *FallbackFifo) Head() uint64 { return f.r.Head() }

// TailDevice reads the last value the stream has applied. Because the
// store happens on the stream goroutine, callers that need a
// read-your-writes view after FlushTail(sync=true) get one; without sync
// this may briefly lag tailHost.
func (f *FallbackFifo) TailDevice() uint64 { return atomic.LoadUint64(&f.r.tailDevice) }
