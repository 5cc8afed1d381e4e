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

// Package lifecycle implements ProxyLifecycle (§4.5): creation and
// teardown of every proxy attached to a communicator, plus the
// Communicator aggregate from the original comm.h (conns array, abort
// flag, per-proxy array).
package lifecycle

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/AtlantaPepsi/mscclpp/internal/dispatch"
	"github.com/AtlantaPepsi/mscclpp/internal/errs"
	"github.com/AtlantaPepsi/mscclpp/internal/proxy"
	"github.com/AtlantaPepsi/mscclpp/internal/runstate"
)

// MaxNumProxies bounds the proxy array size per communicator
// (MSCCLPP_PROXY_MAX_NUM).
const MaxNumProxies = 32

// teardownPollInterval is how often Destroy rechecks a proxy's run state
// while busy-waiting for it to reach Idle, mirroring the teacher's
// 1ms-ticker wait pattern in its segment handshake.
const teardownPollInterval = time.Millisecond

// proxySlot pairs a registered Service with its diagnostic label, so
// Destroy can observe its run state without depending on the caller to
// keep that bookkeeping itself.
type proxySlot struct {
	service *proxy.Service
	label   string
}

// Communicator is the aggregate of every connection and proxy a caller has
// established: the conns array, an abort flag, and the per-proxy array
// from comm.h.
type Communicator struct {
	mu        sync.Mutex
	conns     map[uint32]dispatch.Connection
	proxies   []*proxySlot
	abortFlag atomic.Bool
	log       zerolog.Logger
}

// New returns an empty Communicator.
func New(log zerolog.Logger) *Communicator {
	return &Communicator{
		conns: make(map[uint32]dispatch.Connection),
		log:   log,
	}
}

// AddConn registers a connection under connID so proxy services resolving
// triggers can find it.
func (c *Communicator) AddConn(connID uint32, conn dispatch.Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[connID] = conn
}

// Conn implements proxy.ConnResolver.
func (c *Communicator) Conn(connID uint32) (dispatch.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[connID]
	if !ok {
		return nil, errs.ErrUnknownConn
	}
	return conn, nil
}

// Abort raises the communicator-level abort flag: a release hatch Destroy
// checks while busy-waiting, letting callers give up on graceful shutdown.
func (c *Communicator) Abort() {
	c.abortFlag.Store(true)
}

// Aborted reports whether Abort has been called.
func (c *Communicator) Aborted() bool {
	return c.abortFlag.Load()
}

// CreateService registers svc as proxy slot index and starts its Run loop
// on a dedicated goroutine, naming it for diagnostics the way
// mscclppSetThreadName does ("Service P2P - 02", "Service IB - 02").
func (c *Communicator) CreateService(index int, svc *proxy.Service, transportType proxy.TransportType) error {
	if index < 0 || index >= MaxNumProxies {
		return fmt.Errorf("lifecycle: proxy index %d out of range [0,%d)", index, MaxNumProxies)
	}
	label := fmt.Sprintf("Service %s - %02d", transportType, index)

	c.mu.Lock()
	for len(c.proxies) <= index {
		c.proxies = append(c.proxies, nil)
	}
	c.proxies[index] = &proxySlot{service: svc, label: label}
	c.mu.Unlock()

	go func() {
		if err := svc.Run(); err != nil {
			c.log.Warn().Str("proxy", label).Err(err).Msg("proxy service exited with error")
		}
	}()
	return nil
}

// Destroy tears down every registered proxy: for each one whose run state
// is not already Idle, it stores Exiting and busy-waits, sleeping
// teardownPollInterval between reads, until either the proxy reaches Idle
// or the communicator's abort flag is set.
func (c *Communicator) Destroy() {
	c.mu.Lock()
	slots := make([]*proxySlot, len(c.proxies))
	copy(slots, c.proxies)
	c.mu.Unlock()

	for _, slot := range slots {
		if slot == nil {
			continue
		}
		c.destroyOne(slot)
	}
}

func (c *Communicator) destroyOne(slot *proxySlot) {
	run := slot.service.RunState()
	if run.Load() == runstate.Idle {
		return
	}
	run.Store(runstate.Exiting)

	ticker := time.NewTicker(teardownPollInterval)
	defer ticker.Stop()
	for run.Load() != runstate.Idle {
		if c.Aborted() {
			c.log.Warn().Str("proxy", slot.label).Msg("abort flag set, leaking proxy goroutine")
			return
		}
		<-ticker.C
	}
}
