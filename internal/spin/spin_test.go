package spin

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestNSleepDurationScalesWithNsec(t *testing.T) {
	d0 := NSleepDuration(0)
	if d0 != 0 {
		t.Fatalf("NSleepDuration(0) = %v, want 0", d0)
	}
	d1 := NSleepDuration(1_000_000)
	d2 := NSleepDuration(2_000_000)
	if d2 < d1 {
		t.Fatalf("NSleepDuration should be monotonic in nsec: d1=%v d2=%v", d1, d2)
	}
}

func TestJailbreakStopsWhenCondFalse(t *testing.T) {
	calls := 0
	Jailbreak(testLogger(), "test-site", 5, false, func() bool {
		calls++
		return calls < 3
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestJailbreakContinuesPastBound(t *testing.T) {
	calls := 0
	limit := 10
	Jailbreak(testLogger(), "test-site", 3, false, func() bool {
		calls++
		return calls < limit
	})
	if calls != limit {
		t.Fatalf("calls = %d, want %d (spin must continue past the bound, not abort)", calls, limit)
	}
}

func TestSpinWhileBothExitsOnFirstFalseCond(t *testing.T) {
	cond1Calls, cond2Calls := 0, 0
	SpinWhileBoth(testLogger(), "test-site", -1, false,
		func() bool {
			cond1Calls++
			return false
		},
		func() bool {
			cond2Calls++
			return true
		},
	)
	if cond1Calls != 1 {
		t.Fatalf("cond1 should be checked exactly once, got %d", cond1Calls)
	}
	if cond2Calls != 0 {
		t.Fatalf("cond2 should never be checked once cond1 is false, got %d", cond2Calls)
	}
}

func TestSpinWhileBothStopsWhenEitherFalse(t *testing.T) {
	n := 0
	SpinWhileBoth(testLogger(), "test-site", -1, false,
		func() bool { return true },
		func() bool {
			n++
			return n < 4
		},
	)
	if n != 4 {
		t.Fatalf("n = %d, want 4", n)
	}
}
