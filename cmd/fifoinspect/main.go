// Command fifoinspect drives a trigger FIFO with a synthetic producer
// workload and dumps its head/tailHost/tailDevice counters and flush
// count, the direct descendant of the teacher's segment-capacity probe.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/AtlantaPepsi/mscclpp/internal/fifo"
	"github.com/AtlantaPepsi/mscclpp/internal/trigger"
)

func main() {
	variant := flag.String("variant", "gpudirect", "ring variant: gpudirect or fallback")
	capacity := flag.Uint64("capacity", 64, "ring capacity, must be a power of two")
	count := flag.Uint64("count", 1000, "number of synthetic triggers to publish")
	flushEvery := flag.Uint64("flush-every", 16, "publish a FlushTail after this many pops")
	flag.Parse()

	f, err := newFifo(*variant, *capacity)
	if err != nil {
		log.Fatalf("fifoinspect: %v", err)
	}
	defer f.Close()

	fmt.Printf("=== FIFO Configuration ===\n")
	fmt.Printf("variant: %s\n", *variant)
	fmt.Printf("capacity: %d\n", *capacity)
	fmt.Printf("triggers: %d\n", *count)

	var flushes uint64
	for i := uint64(0); i < *count; i++ {
		f.PublishSlot(trigger.Trigger{
			Type:          trigger.Data,
			ConnID:        uint32(i % 4),
			SrcDataOffset: uint32(i * 16),
			DstDataOffset: uint32(i * 16),
			DataSize:      16,
		})

		if _, ok := f.Poll(); ok {
			f.Pop()
			if f.TailHost()%(*flushEvery) == 0 {
				f.FlushTail(false)
				flushes++
			}
		}
	}
	f.FlushTail(true)
	flushes++

	fmt.Printf("\n=== Ring State ===\n")
	fmt.Printf("head: %d\n", f.Head())
	fmt.Printf("tailHost: %d\n", f.TailHost())
	fmt.Printf("tailDevice: %d\n", f.TailDevice())
	fmt.Printf("flushes: %d\n", flushes)
}

// inspectFifo is the subset of fifo.TriggerFifo plus the producer-side
// helpers this tool needs to drive a ring without a real GPU kernel.
type inspectFifo interface {
	fifo.TriggerFifo
	PublishSlot(t trigger.Trigger)
	Head() uint64
	TailDevice() uint64
}

func newFifo(variant string, capacity uint64) (inspectFifo, error) {
	switch variant {
	case "gpudirect":
		return fifo.NewGPUDirect(capacity)
	case "fallback":
		return fifo.NewFallback(capacity)
	default:
		return nil, fmt.Errorf("unknown variant %q (want gpudirect or fallback)", variant)
	}
}
