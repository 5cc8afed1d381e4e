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

import "github.com/AtlantaPepsi/mscclpp/internal/trigger"

// GPUDirectFifo is the placement variant where slots and tailDevice live in
// memory mapped into the GPU's address space. Host stores are visible to
// the GPU without explicit copies, so FlushTail is a direct store with no
// stream involved.
type GPUDirectFifo struct {
	r *ring
}

// NewGPUDirect allocates a ring of the given power-of-two capacity in
// GPU-mapped host memory. The real mapping step (cudaHostRegister or
// equivalent) is outside this module's scope (spec §1); here the slots are
// a plain Go slice standing in for that mapped region.
func NewGPUDirect(capacity uint64) (*GPUDirectFifo, error) {
	r, err := newRing(capacity)
	if err != nil {
		return nil, err
	}
	return &GPUDirectFifo{r: r}, nil
}

func (f *GPUDirectFifo) Poll() (trigger.Trigger, bool) { return f.r.poll() }

func (f *GPUDirectFifo) Pop() { f.r.pop() }

// FlushTail publishes tailHost directly into tailDevice. sync is accepted
// for interface symmetry with FallbackFifo but has no effect here: a plain
// store is already visible without a separate synchronization step.
func (f *GPUDirectFifo) FlushTail(sync bool) {
	f.r.tailDevice = f.r.tailHost
}

func (f *GPUDirectFifo) TailHost() uint64 { return f.r.tailHost }

// Close releases the ring. GPU-direct has no separate stream to tear down.
func (f *GPUDirectFifo) Close() error { return nil }

// PublishSlot exposes the producer-side push for test harnesses driving a
// simulated GPU kernel.
func (f *GPUDirectFifo) PublishSlot(t trigger.Trigger) { f.r.PublishSlot(t) }

// Head and TailDevice expose the producer-visible counters for tests.
func (f *GPUDirectFifo) Head() uint64       { return f.r.Head() }
func (f *GPUDirectFifo) TailDevice() uint64 { return f.r.TailDevice() }
