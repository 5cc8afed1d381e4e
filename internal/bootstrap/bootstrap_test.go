package bootstrap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestExchangeTwoRanks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log := zerolog.Nop()

	b0, err := New(ctx, Config{Rank: 0, WorldSize: 2, ListenPort: 0}, RankInfo{
		SegmentName: "mscclpp-rank-0",
		ShmAddress:  0x1000,
	}, log)
	if err != nil {
		t.Fatalf("New(rank 0): %v", err)
	}
	defer b0.Close()

	addr0 := fmt.Sprintf("%s/p2p/%s", b0.Host().Addrs()[0], b0.Host().ID())

	b1, err := New(ctx, Config{
		Rank:           1,
		WorldSize:      2,
		ListenPort:     0,
		BootstrapPeers: []string{addr0},
	}, RankInfo{
		SegmentName: "mscclpp-rank-1",
		ShmAddress:  0x2000,
	}, log)
	if err != nil {
		t.Fatalf("New(rank 1): %v", err)
	}
	defer b1.Close()

	table0, err := b0.Exchange(ctx)
	if err != nil {
		t.Fatalf("b0.Exchange: %v", err)
	}
	table1, err := b1.Exchange(ctx)
	if err != nil {
		t.Fatalf("b1.Exchange: %v", err)
	}

	for _, table := range []map[uint32]RankInfo{table0, table1} {
		if len(table) != 2 {
			t.Fatalf("len(table) = %d, want 2", len(table))
		}
		if table[0].SegmentName != "mscclpp-rank-0" || table[0].ShmAddress != 0x1000 {
			t.Fatalf("rank 0 entry = %+v", table[0])
		}
		if table[1].SegmentName != "mscclpp-rank-1" || table[1].ShmAddress != 0x2000 {
			t.Fatalf("rank 1 entry = %+v", table[1])
		}
	}
}

func TestExchangeTimesOutWithoutPeers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	b, err := New(ctx, Config{Rank: 0, WorldSize: 2, ListenPort: 0}, RankInfo{
		SegmentName: "mscclpp-rank-0",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if _, err := b.Exchange(ctx); err == nil {
		t.Fatal("expected Exchange to time out with a missing peer")
	}
}
