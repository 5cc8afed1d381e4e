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

// Package bootstrap implements rank/address exchange over libp2p: every
// rank publishes a RankInfo (shared-memory segment name/address, optional
// IB address bytes) to every peer it can reach, and waits until it has
// collected one from every other rank before returning. This stands in
// for the out-of-band bootstrap hook a communicator is handed before its
// proxies and connections exist.
package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	libp2pprotocol "github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"
)

// ProtocolID identifies the rank-exchange stream protocol.
const ProtocolID = "/mscclpp/bootstrap/1.0.0"

// ServiceTag is the mDNS discovery tag ranks advertise under.
const ServiceTag = "mscclpp-bootstrap"

// Config configures one rank's bootstrap participant.
type Config struct {
	Rank           uint32
	WorldSize      uint32
	ListenPort     int
	EnableMDNS     bool
	BootstrapPeers []string // multiaddrs of peers known in advance
}

// Bootstrap is one rank's participant in the exchange.
type Bootstrap struct {
	cfg Config
	log zerolog.Logger
	h   host.Host

	mu       sync.Mutex
	received map[uint32]RankInfo
	sendTo   map[peer.ID]struct{} // peers we've already pushed our own info to

	self RankInfo
}

// New creates a libp2p host bound to cfg.ListenPort, registers the
// rank-exchange stream handler, optionally starts mDNS discovery, and
// connects and publishes this rank's RankInfo to each of cfg.BootstrapPeers.
// It does not wait for any other rank's info; call Exchange for that.
func New(ctx context.Context, cfg Config, self RankInfo, log zerolog.Logger) (*Bootstrap, error) {
	self.Rank = cfg.Rank
	listenAddr, err := multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", cfg.ListenPort))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: invalid listen address: %w", err)
	}
	h, err := libp2p.New(libp2p.ListenAddrs(listenAddr))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: failed to create host: %w", err)
	}

	b := &Bootstrap{
		cfg:      cfg,
		log:      log.With().Uint32("rank", cfg.Rank).Logger(),
		h:        h,
		received: make(map[uint32]RankInfo),
		sendTo:   make(map[peer.ID]struct{}),
		self:     self,
	}
	b.received[cfg.Rank] = self

	h.SetStreamHandler(libp2pprotocol.ID(ProtocolID), b.handleStream)

	if cfg.EnableMDNS {
		svc := mdns.NewMdnsService(h, ServiceTag, &discoveryNotifee{b: b})
		if err := svc.Start(); err != nil {
			b.log.Warn().Err(err).Msg("mdns start failed")
		}
	}

	for _, addr := range cfg.BootstrapPeers {
		if err := b.connectAndPublish(ctx, addr); err != nil {
			b.log.Warn().Err(err).Str("addr", addr).Msg("bootstrap peer connect failed")
		}
	}

	return b, nil
}

// Host returns the underlying libp2p host, for callers that need the
// local listen addresses to hand to peers out of band.
func (b *Bootstrap) Host() host.Host { return b.h }

func (b *Bootstrap) connectAndPublish(ctx context.Context, addr string) error {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	pi, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return err
	}
	if err := b.h.Connect(ctx, *pi); err != nil {
		return err
	}
	return b.publishTo(ctx, pi.ID)
}

// publishTo opens a stream to p and writes this rank's RankInfo, once.
func (b *Bootstrap) publishTo(ctx context.Context, p peer.ID) error {
	b.mu.Lock()
	if _, done := b.sendTo[p]; done {
		b.mu.Unlock()
		return nil
	}
	b.sendTo[p] = struct{}{}
	self := b.self
	b.mu.Unlock()

	s, err := b.h.NewStream(ctx, p, libp2pprotocol.ID(ProtocolID))
	if err != nil {
		return fmt.Errorf("bootstrap: open stream to %s: %w", p, err)
	}
	defer s.Close()
	return writeRankInfo(s, b.cfg.Rank, self)
}

// handleStream receives one peer's RankInfo and records it.
func (b *Bootstrap) handleStream(s network.Stream) {
	defer s.Close()
	info, err := readRankInfo(s)
	if err != nil {
		b.log.Warn().Err(err).Msg("rank info read failed")
		return
	}
	b.mu.Lock()
	b.received[info.Rank] = info
	b.mu.Unlock()

	// Reciprocate so a rank that only discovered us (never listed as our
	// own bootstrap peer) still gets our info.
	go func() {
		if err := b.publishTo(context.Background(), s.Conn().RemotePeer()); err != nil {
			b.log.Warn().Err(err).Msg("reciprocal publish failed")
		}
	}()
}

// Exchange blocks until every rank in [0, WorldSize) has been heard from,
// or ctx is done, then returns the full rank table.
func (b *Bootstrap) Exchange(ctx context.Context) (map[uint32]RankInfo, error) {
	ticker := time.NewTicker(1 * time.Millisecond)
	defer ticker.Stop()

	for {
		b.mu.Lock()
		complete := uint32(len(b.received)) >= b.cfg.WorldSize
		b.mu.Unlock()
		if complete {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("bootstrap: exchange incomplete: %w", ctx.Err())
		case <-ticker.C:
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[uint32]RankInfo, len(b.received))
	for rank, info := range b.received {
		out[rank] = info
	}
	return out, nil
}

// Close shuts down the underlying host.
func (b *Bootstrap) Close() error {
	return b.h.Close()
}

// discoveryNotifee connects to, and publishes rank info toward, peers
// mDNS discovers on the local network.
type discoveryNotifee struct {
	b *Bootstrap
}

func (d *discoveryNotifee) HandlePeerFound(pi peer.AddrInfo) {
	ctx := context.Background()
	if err := d.b.h.Connect(ctx, pi); err != nil {
		d.b.log.Warn().Err(err).Str("peer", pi.ID.String()).Msg("mdns connect failed")
		return
	}
	if err := d.b.publishTo(ctx, pi.ID); err != nil {
		d.b.log.Warn().Err(err).Str("peer", pi.ID.String()).Msg("mdns publish failed")
	}
}
