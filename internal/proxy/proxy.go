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

// Package proxy implements the per-proxy CPU service loop: the run-state
// machine, the poll/pop/flush cadence, NUMA binding, and the shutdown
// sequence described in spec §4.4.
package proxy

import (
	"github.com/rs/zerolog"

	"github.com/AtlantaPepsi/mscclpp/internal/dispatch"
	"github.com/AtlantaPepsi/mscclpp/internal/errs"
	"github.com/AtlantaPepsi/mscclpp/internal/fifo"
	"github.com/AtlantaPepsi/mscclpp/internal/runstate"
	"github.com/AtlantaPepsi/mscclpp/internal/trigger"
)

// RunStateCheckPeriod is the number of poll iterations between run-state
// reads, amortizing the cost of reading a coherent cache line across many
// trigger checks.
const RunStateCheckPeriod = 100

// TransportType selects which host connection handler a proxy binds to.
type TransportType int

const (
	TransportP2P TransportType = iota
	TransportIB
)

func (t TransportType) String() string {
	if t == TransportIB {
		return "IB"
	}
	return "P2P"
}

// ConnResolver looks up the connection a trigger targets by its ConnID.
// Implemented by the lifecycle's Communicator.
type ConnResolver interface {
	Conn(connID uint32) (dispatch.Connection, error)
}

// P2PStream is the minimal stream-synchronize surface a P2P proxy's
// shutdown path needs; it stands in for a CUDA stream handle.
type P2PStream interface {
	Synchronize() error
}

// Config is the plain, caller-constructed configuration for one Service.
// There is no flag/env parser here (spec §1 places config loading out of
// scope); callers resolve these values themselves.
type Config struct {
	TransportType TransportType
	// FlushCounter is triggers between forced tail flushes
	// (MSCCLPP_PROXY_FIFO_FLUSH_COUNTER).
	FlushCounter uint64
	// NUMANode is the device's NUMA node to bind this service's OS thread
	// to before entering the poll loop. -1 disables binding (used in
	// tests, and on platforms with no NUMA support).
	NUMANode int
	// P2PStream is synchronized during shutdown when TransportType ==
	// TransportP2P; a nil P2PStream skips that step.
	P2PStream P2PStream
}

// Service is one proxy's CPU worker.
type Service struct {
	cfg   Config
	fifo  fifo.TriggerFifo
	conns ConnResolver
	run   *runstate.Word
	log   zerolog.Logger
}

// New constructs a Service bound to f and conns. The returned Service has
// run=Running, matching the lifecycle in spec §3.
func New(cfg Config, f fifo.TriggerFifo, conns ConnResolver, log zerolog.Logger) *Service {
	return &Service{
		cfg:   cfg,
		fifo:  f,
		conns: conns,
		run:   runstate.New(),
		log:   log,
	}
}

// Run binds the calling goroutine's OS thread to the configured NUMA node
// and enters the poll loop. It returns when run transitions away from
// Running, or immediately on the first fatal transport/stream error (spec
// §7: transport errors are never retried inside the loop). Callers should
// invoke Run on a goroutine that has called runtime.LockOSThread, matching
// the teacher's one-thread-per-service-loop model.
func (s *Service) Run() error {
	if err := numaBind(s.cfg.NUMANode); err != nil {
		return errs.Wrap("numaBind", err)
	}

	runCnt := RunStateCheckPeriod
	var flushCnt uint64

	for {
		if runCnt == 0 {
			runCnt = RunStateCheckPeriod
			if s.run.Load() != runstate.Running {
				break
			}
		}
		runCnt--

		trig, ok := s.fifo.Poll()
		if !ok {
			continue
		}

		conn, err := s.conns.Conn(trig.ConnID)
		if err != nil {
			return errs.Wrap("resolve connection", err)
		}
		if err := dispatch.Dispatch(trig, conn); err != nil {
			s.log.Warn().Uint32("connID", trig.ConnID).Err(err).Msg("transport dispatch failed, proxy stopping")
			return err
		}

		s.fifo.Pop()

		flushCnt++
		if (s.cfg.FlushCounter != 0 && flushCnt%s.cfg.FlushCounter == 0) || trig.Type&trigger.Sync != 0 {
			s.fifo.FlushTail(false)
		}
	}

	return s.shutdown()
}

func (s *Service) shutdown() error {
	s.fifo.FlushTail(true)
	if s.cfg.TransportType == TransportP2P && s.cfg.P2PStream != nil {
		if err := s.cfg.P2PStream.Synchronize(); err != nil {
			return errs.Stream("p2p synchronize", err)
		}
	}
	s.run.Store(runstate.Idle)
	return nil
}

// RunState exposes the service's run-state cell to lifecycle code.
func (s *Service) RunState() *runstate.Word { return s.run }
