package bootstrap

import (
	"bytes"
	"testing"
)

func TestHeaderSerialization(t *testing.T) {
	h := header{Type: rankInfoMsg, Rank: 7}
	buf := serializeHeader(h)
	if len(buf) != headerSize {
		t.Fatalf("len(buf) = %d, want %d", len(buf), headerSize)
	}
	decoded, err := deserializeHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if decoded != h {
		t.Fatalf("decoded = %+v, want %+v", decoded, h)
	}
}

func TestDeserializeHeaderTooSmall(t *testing.T) {
	if _, err := deserializeHeader(make([]byte, headerSize-1)); err == nil {
		t.Fatal("expected error for undersized buffer")
	}
}

func TestWriteReadRankInfoRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	info := RankInfo{
		Rank:        3,
		SegmentName: "mscclpp-rank-3",
		ShmAddress:  0xdeadbeef,
		IBAddrBytes: []byte{1, 2, 3, 4},
	}
	if err := writeRankInfo(&buf, 3, info); err != nil {
		t.Fatal(err)
	}
	got, err := readRankInfo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Rank != info.Rank || got.SegmentName != info.SegmentName || got.ShmAddress != info.ShmAddress {
		t.Fatalf("got = %+v, want %+v", got, info)
	}
	if !bytes.Equal(got.IBAddrBytes, info.IBAddrBytes) {
		t.Fatalf("IBAddrBytes = %v, want %v", got.IBAddrBytes, info.IBAddrBytes)
	}
}

func TestReadRankInfoShortBuffer(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(1)
	if _, err := readRankInfo(&buf); err == nil {
		t.Fatal("expected error reading truncated message")
	}
}
