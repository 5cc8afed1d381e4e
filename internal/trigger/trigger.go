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

// Package trigger defines the 16-byte record a GPU producer enqueues into
// a TriggerFifo and a CPU proxy drains from it.
package trigger

import "encoding/binary"

// Type is a bitmask of the operations a trigger asks the proxy to run.
type Type uint8

const (
	// Data requests a one-sided put on the connection's transport.
	Data Type = 1 << iota
	// Flag requests a remote flag increment (signal).
	Flag
	// Sync requests the connection drain all outstanding posts (flush).
	Sync
)

func (t Type) String() string {
	if t == 0 {
		return "none"
	}
	s := ""
	if t&Data != 0 {
		s += "Data|"
	}
	if t&Flag != 0 {
		s += "Flag|"
	}
	if t&Sync != 0 {
		s += "Sync|"
	}
	if s == "" {
		return "unknown"
	}
	return s[:len(s)-1]
}

// Size is the on-wire width of a Trigger: two 64-bit words. The ring stores
// slots as a plain []Raw, so slots are not cache-line aligned. The low word always carries `type` in its
// lowest byte; a non-zero low word is the single atomic signal that a
// slot holds a valid trigger.
const Size = 16

// Trigger is the decoded view of one FIFO slot.
type Trigger struct {
	Type          Type
	ConnID        uint32 // low 24 bits significant
	SrcDataOffset uint32
	DstDataOffset uint32
	DataSize      uint32
}

// Raw is the packed 128-bit wire form.
//
// Raw[0] (low word):  bits [0:8)=Type, [8:32)=ConnID, [32:64)=DataSize.
// Raw[1] (high word):  bits [0:32)=SrcDataOffset, [32:64)=DstDataOffset.
//
// GPU writers must store Raw[0] last, with release ordering, so the CPU
// reader never observes a half-written slot as valid: everything that
// makes a trigger meaningful to decode (ConnID, the offsets, the size)
// can land in memory before Type, but Type's non-zero write is what
// publishes the slot.
type Raw [2]uint64

// Empty reports whether the raw slot's low word -- and therefore its
// Type field -- is zero, the single "this slot holds nothing" signal.
func (r Raw) Empty() bool {
	return r[0] == 0
}

// Encode packs t into its wire form.
func Encode(t Trigger) Raw {
	var r Raw
	r[0] = uint64(t.Type) | uint64(t.ConnID&0xFFFFFF)<<8 | uint64(t.DataSize)<<32
	r[1] = uint64(t.SrcDataOffset) | uint64(t.DstDataOffset)<<32
	return r
}

// Decode unpacks a raw wire slot into its field view. It is the inverse
// of Encode and must stay in lockstep with its bit layout.
func Decode(r Raw) Trigger {
	return Trigger{
		Type:          Type(r[0] & 0xFF),
		ConnID:        uint32(r[0]>>8) & 0xFFFFFF,
		DataSize:      uint32(r[0] >> 32),
		SrcDataOffset: uint32(r[1]),
		DstDataOffset: uint32(r[1] >> 32),
	}
}

// PutBytes writes t's packed form into a 16-byte little-endian buffer,
// the layout a real device-side store would use.
func PutBytes(b []byte, t Trigger) {
	r := Encode(t)
	binary.LittleEndian.PutUint64(b[0:8], r[0])
	binary.LittleEndian.PutUint64(b[8:16], r[1])
}

// Bytes returns t's packed 16-byte wire form.
func Bytes(t Trigger) [Size]byte {
	var b [Size]byte
	PutBytes(b[:], t)
	return b
}
