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

package bootstrap

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// msgType identifies the one request this protocol ever sends: a rank's
// connection info, pushed to every peer once it is known.
type msgType uint8

const rankInfoMsg msgType = 1

// header is the fixed-size preamble before a msgpack payload.
type header struct {
	Type msgType
	Rank uint32
}

const headerSize = 1 + 4

func serializeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	buf[0] = byte(h.Type)
	binary.BigEndian.PutUint32(buf[1:5], h.Rank)
	return buf
}

func deserializeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, errors.New("bootstrap: buffer too small for header")
	}
	return header{
		Type: msgType(buf[0]),
		Rank: binary.BigEndian.Uint32(buf[1:5]),
	}, nil
}

// RankInfo is what one rank publishes to every other rank before the
// proxy lifecycle starts: enough for a peer to build a connp2p or connib
// Connection to it.
type RankInfo struct {
	Rank        uint32 `msgpack:"rank"`
	SegmentName string `msgpack:"segment_name"` // shared-memory ring identifier
	ShmAddress  uint64 `msgpack:"shm_address"`  // base address of the rank's FIFO segment
	IBAddrBytes []byte `msgpack:"ib_addr"`      // opaque fi.Address encoding, empty if IB is unused
}

// writeRankInfo writes a length-prefixed, msgpack-encoded RankInfo preceded
// by its header, mirroring the kv-cache-p2p sibling's framing.
func writeRankInfo(w io.Writer, rank uint32, info RankInfo) error {
	if _, err := w.Write(serializeHeader(header{Type: rankInfoMsg, Rank: rank})); err != nil {
		return err
	}
	data, err := msgpack.Marshal(info)
	if err != nil {
		return err
	}
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readRankInfo is writeRankInfo's inverse.
func readRankInfo(r io.Reader) (RankInfo, error) {
	headerBuf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return RankInfo{}, err
	}
	if _, err := deserializeHeader(headerBuf); err != nil {
		return RankInfo{}, err
	}
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return RankInfo{}, err
	}
	payload := make([]byte, binary.BigEndian.Uint32(lenBuf))
	if _, err := io.ReadFull(r, payload); err != nil {
		return RankInfo{}, err
	}
	var info RankInfo
	if err := msgpack.Unmarshal(payload, &info); err != nil {
		return RankInfo{}, err
	}
	return info, nil
}
