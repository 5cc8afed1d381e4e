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

// Package fifo implements the device-visible single-producer/single-consumer
// trigger ring: a GPU producer writes 16-byte trigger records and advances
// head, a single CPU service thread polls, pops, and periodically
// republishes tail so the producer can reclaim slots.
package fifo

import (
	"fmt"
	"sync/atomic"

	"github.com/AtlantaPepsi/mscclpp/internal/trigger"
)

// MinCapacity mirrors the teacher's ring minimum-size posture: a FIFO this
// small defeats the point of amortizing flush cost over many triggers.
const MinCapacity = 8

// IsPowerOfTwo reports whether n is a power of two.
func IsPowerOfTwo(n uint64) bool {
	return n > 0 && (n&(n-1)) == 0
}

// TriggerFifo is the abstract ring contract both memory-placement variants
// satisfy. Callers (ProxyService) see only these operations; GPU-direct and
// fallback differ solely in where slots and tailDevice live and how
// tailDevice gets republished.
type TriggerFifo interface {
	// Poll atomically snapshots the slot at tailHost%N. ok is false when the
	// slot's low word (the Type field) is zero -- an empty slot.
	Poll() (t trigger.Trigger, ok bool)
	// Pop zeroes the slot at tailHost%N with a release store, then
	// increments tailHost. Must only be called after a Poll that returned
	// ok == true for the same slot.
	Pop()
	// FlushTail publishes the current tailHost to tailDevice. When sync is
	// true and the variant uses an async copy path, FlushTail blocks until
	// that copy lands.
	FlushTail(sync bool)
	// TailHost returns the current host-local tail counter, for tests and
	// diagnostics.
	TailHost() uint64
	// Close releases the FIFO's backing allocations.
	Close() error
}

// ring holds the state common to both placement variants: the slot array
// and the three counters from spec §3. head is written only by the GPU
// producer and is never read on the CPU hot path; it is modeled here so
// tests can drive the producer side.
type ring struct {
	slots      []trigger.Raw
	mask       uint64
	head       uint64 // producer-owned; exposed for test harnesses
	tailHost   uint64 // consumer-owned
	tailDevice uint64 // last value published to the device side
}

func newRing(capacity uint64) (*ring, error) {
	if capacity < MinCapacity {
		return nil, fmt.Errorf("fifo: capacity %d below minimum %d", capacity, MinCapacity)
	}
	if !IsPowerOfTwo(capacity) {
		return nil, fmt.Errorf("fifo: capacity %d is not a power of two", capacity)
	}
	return &ring{
		slots: make([]trigger.Raw, capacity),
		mask:  capacity - 1,
	}, nil
}

// poll is the shared Poll implementation: a single 128-bit slot read. Go
// guarantees neither a torn 128-bit load nor word-level ordering across
// r.slots[i][0] and r.slots[i][1] by default, so production stores into a
// slot must go through PublishSlot (device-side push simulation), which
// orders the payload word before the Type word with a release fence; the
// poll side re-checks Type is still non-zero after reading the payload,
// matching the two-stage read spec §9 calls for on architectures without a
// native 16-byte atomic.
func (r *ring) poll() (trigger.Trigger, bool) {
	slot := &r.slots[r.tailHost&r.mask]
	lo := atomic.LoadUint64(&slot[0])
	if lo == 0 {
		return trigger.Trigger{}, false
	}
	hi := atomic.LoadUint64(&slot[1])
	if atomic.LoadUint64(&slot[0]) == 0 {
		return trigger.Trigger{}, false
	}
	return trigger.Decode(trigger.Raw{lo, hi}), true
}

// pop zeroes the current slot and advances tailHost. The zeroing store must
// be visible before tailHost's increment is visible, so a GPU producer
// never observes a reclaimed index while the slot still reads as occupied.
func (r *ring) pop() {
	idx := r.tailHost & r.mask
	atomic.StoreUint64(&r.slots[idx][0], 0)
	atomic.StoreUint64(&r.slots[idx][1], 0)
	r.tailHost++
}

// PublishSlot writes t into the slot at head%N and advances head, exactly
// the device-side ABI described in spec §6: payload words land first, the
// Type-bearing low word is stored last. It exists so host-side tests can
// drive a TriggerFifo without a real GPU kernel.
func (r *ring) PublishSlot(t trigger.Trigger) {
	idx := r.head & r.mask
	raw := trigger.Encode(t)
	atomic.StoreUint64(&r.slots[idx][1], raw[1])
	atomic.StoreUint64(&r.slots[idx][0], raw[0])
	r.head++
}

// Head returns the producer-side counter.
func (r *ring) Head() uint64 { return r.head }

// TailDevice returns the last tail value republished to the device side.
func (r *ring) TailDevice() uint64 { return r.tailDevice }
