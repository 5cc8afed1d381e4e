package proxy

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/AtlantaPepsi/mscclpp/internal/dispatch"
	"github.com/AtlantaPepsi/mscclpp/internal/fifo"
	"github.com/AtlantaPepsi/mscclpp/internal/runstate"
	"github.com/AtlantaPepsi/mscclpp/internal/trigger"
)

type fakeConn struct {
	puts, signals, flushes int
	err                    error
}

func (c *fakeConn) Put(dst, src, size uint32) error { c.puts++; return c.err }
func (c *fakeConn) Signal() error                    { c.signals++; return c.err }
func (c *fakeConn) Flush() error                     { c.flushes++; return c.err }

type fakeResolver struct {
	conns map[uint32]dispatch.Connection
}

func (r *fakeResolver) Conn(connID uint32) (dispatch.Connection, error) {
	c, ok := r.conns[connID]
	if !ok {
		return nil, errors.New("no such connection")
	}
	return c, nil
}

func testLogger() zerolog.Logger { return zerolog.New(io.Discard) }

func TestRunDispatchesSingleDataTrigger(t *testing.T) {
	f, err := fifo.NewGPUDirect(8)
	if err != nil {
		t.Fatal(err)
	}
	conn := &fakeConn{}
	resolver := &fakeResolver{conns: map[uint32]dispatch.Connection{0: conn}}

	f.PublishSlot(trigger.Trigger{Type: trigger.Data, ConnID: 0, SrcDataOffset: 0x100, DstDataOffset: 0x200, DataSize: 4096})

	s := New(Config{TransportType: TransportP2P, FlushCounter: 4, NUMANode: -1}, f, resolver, testLogger())
	s.RunState().Store(runstate.Exiting)

	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	if conn.puts != 1 {
		t.Fatalf("puts = %d, want 1", conn.puts)
	}
	if conn.flushes != 0 {
		t.Fatalf("flushes = %d, want 0 (no Sync set)", conn.flushes)
	}
	if s.RunState().Load() != runstate.Idle {
		t.Fatalf("run state = %v, want Idle", s.RunState().Load())
	}
	if f.TailHost() != 1 {
		t.Fatalf("tailHost = %d, want 1", f.TailHost())
	}
}

// countingFifo wraps a TriggerFifo and counts FlushTail calls, so the
// flush cadence (spec §8 scenario 3) can be asserted without a real GPU
// producer observing tailDevice directly.
type countingFifo struct {
	fifo.TriggerFifo
	flushes int
}

func (f *countingFifo) FlushTail(sync bool) {
	f.flushes++
	f.TriggerFifo.FlushTail(sync)
}

func TestRunFlushCadence(t *testing.T) {
	inner, err := fifo.NewGPUDirect(16)
	if err != nil {
		t.Fatal(err)
	}
	f := &countingFifo{TriggerFifo: inner}
	conn := &fakeConn{}
	resolver := &fakeResolver{conns: map[uint32]dispatch.Connection{0: conn}}

	for i := 0; i < 10; i++ {
		inner.PublishSlot(trigger.Trigger{Type: trigger.Data, ConnID: 0})
	}

	s := New(Config{TransportType: TransportP2P, FlushCounter: 4, NUMANode: -1}, f, resolver, testLogger())
	s.RunState().Store(runstate.Exiting)

	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	// 10 non-sync triggers with FlushCounter=4: cadence flushes after the
	// 4th and 8th, plus one final sync flush on shutdown == 3 total.
	if f.flushes != 3 {
		t.Fatalf("flushes = %d, want 3 (cadence at 4 and 8, plus final shutdown flush)", f.flushes)
	}
}

func TestRunStopsOnTransportError(t *testing.T) {
	f, err := fifo.NewGPUDirect(8)
	if err != nil {
		t.Fatal(err)
	}
	conn := &fakeConn{err: errors.New("link down")}
	resolver := &fakeResolver{conns: map[uint32]dispatch.Connection{0: conn}}

	f.PublishSlot(trigger.Trigger{Type: trigger.Data, ConnID: 0})

	s := New(Config{TransportType: TransportP2P, NUMANode: -1}, f, resolver, testLogger())
	if err := s.Run(); err == nil {
		t.Fatal("expected a transport error to stop the loop")
	}
	if s.RunState().Load() == runstate.Idle {
		t.Fatal("run state must not reach Idle when the loop dies on a transport error")
	}
}

func TestRunUnknownConnStopsLoop(t *testing.T) {
	f, err := fifo.NewGPUDirect(8)
	if err != nil {
		t.Fatal(err)
	}
	resolver := &fakeResolver{conns: map[uint32]dispatch.Connection{}}
	f.PublishSlot(trigger.Trigger{Type: trigger.Data, ConnID: 99})

	s := New(Config{TransportType: TransportP2P, NUMANode: -1}, f, resolver, testLogger())
	if err := s.Run(); err == nil {
		t.Fatal("expected an error resolving an unknown connection id")
	}
}
