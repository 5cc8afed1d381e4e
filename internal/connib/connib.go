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

// Package connib implements the dispatch.Connection contract for an IB
// (RDMA) transport using github.com/rocketbitz/libfabric-go/fi. Put posts
// a message send against a registered memory region (this fi binding
// exposes fi_send/fi_recv, not fi_write, so a one-sided put is modeled as
// a send the peer's receive queue consumes without application
// involvement), Signal posts a zero-length inject, and
// Flush drains the endpoint's completion queue until every posted
// operation has a matching completion.
package connib

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	fi "github.com/rocketbitz/libfabric-go/fi"

	"github.com/AtlantaPepsi/mscclpp/internal/dispatch"
	"github.com/AtlantaPepsi/mscclpp/internal/errs"
)

// putTag and signalTag name the two message kinds this connection posts.
// Neither Put's Send nor Signal's Inject carries a tag, so a peer cannot
// tell the two kinds apart by tag.
const (
	putTag    = uint64(1)
	signalTag = uint64(2)
)

// Connection is an IB transport bound to one peer address. local is the
// registered send buffer Put copies data out of before posting.
type Connection struct {
	ep       *fi.Endpoint
	cq       *fi.CompletionQueue
	peer     fi.Address
	local    []byte
	localMR  unsafe.Pointer // local memory descriptor for fi.Send's desc argument

	posted    atomic.Uint64
	completed atomic.Uint64
}

// New wraps an already-connected endpoint and its bound completion queue.
// Connection establishment (address exchange, endpoint setup) is handled
// by internal/bootstrap and is out of scope here.
func New(ep *fi.Endpoint, cq *fi.CompletionQueue, peer fi.Address, local []byte, localMR unsafe.Pointer) *Connection {
	return &Connection{ep: ep, cq: cq, peer: peer, local: local, localMR: localMR}
}

var _ dispatch.Connection = (*Connection)(nil)

// Put posts a send of local[src:src+size] to the peer, who is
// expected to have a matching receive posted at dstOffset in its own
// address space -- the IB analogue of the P2P transport's direct copy.
func (c *Connection) Put(dstOffset, srcOffset, size uint32) error {
	if int(srcOffset+size) > len(c.local) {
		return fmt.Errorf("connib: put out of range: src=%d size=%d", srcOffset, size)
	}
	buf := unsafe.Pointer(&c.local[srcOffset])
	if err := c.ep.Send(buf, uintptr(size), c.localMR, c.peer, unsafe.Pointer(&c.posted)); err != nil {
		return errs.Stream("ib send", err)
	}
	c.posted.Add(1)
	return nil
}

// Signal posts a zero-length inject that the peer's receive side
// interprets as a flag increment.
func (c *Connection) Signal() error {
	if err := c.ep.Inject(nil, 0, c.peer); err != nil {
		return errs.Stream("ib signal", err)
	}
	return nil
}

// Flush drains the completion queue until every operation Put has posted
// has a matching completion, the IB analogue of the P2P transport's
// futex-based wait.
func (c *Connection) Flush() error {
	target := c.posted.Load()
	for c.completed.Load() < target {
		event, err := c.cq.ReadContext()
		if err != nil {
			return errs.Stream("ib cq read", err)
		}
		if event != nil {
			c.completed.Add(1)
		}
	}
	return nil
}
