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

// Package spin implements the device-side wait primitives GPU kernels use
// to poll memory-resident flags: clock-based sleeps and bounded spins that
// warn, but never abort, when they run long.
package spin

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// ClocksFactor is the device-clock-to-second conversion constant for the
// target architecture.
const ClocksFactor = 2106

// ClocksPerSec stands in for the device's CLOCKS_PER_SEC on the host side,
// where there is no device clock register to read; wall-clock sleeps take
// its place below.
const ClocksPerSec = 1

// NSleepDuration converts a nanosecond count into the wait duration
// sleep_clocks would have stalled for, using the same
// clocks_factor * CLOCKS_PER_SEC * nsec / 1e9 conversion as the device
// routine. On the host there is no warp or clock register, so nsleep here
// is a straight time.Sleep rather than a spin loop: callers that need the
// device's warp-coherent busy-wait semantics belong on the device, not in
// this host-side stand-in.
func NSleepDuration(nsec int64) time.Duration {
	clocks := ClocksFactor * ClocksPerSec * nsec / 1_000_000_000
	return time.Duration(clocks * 1_000_000_000 / (ClocksFactor * ClocksPerSec))
}

// NSleep blocks for approximately nsec nanoseconds, mirroring the device
// nsleep primitive's intent (let a stalled waiter back off) without its
// warp semantics.
func NSleep(nsec int64) {
	time.Sleep(NSleepDuration(nsec))
}

// Jailbreak runs a bounded spin over cond, the Go analogue of the
// POLL_MAYBE_JAILBREAK macro: while cond() is true, keep spinning; once the
// iteration count reaches maxSpinCnt (a negative value disables the
// bound), log a diagnostic identifying where the spin is stuck and keep
// going rather than abort. site is a short human-readable description of
// the predicate and call location, matching the macro's use of
// __FILE__/__LINE__/__PRETTY_FUNCTION__.
//
// PanicOnStall, when true, makes the diagnostic fatal instead of a warning
// -- the equivalent of the macro's debug-build __assert_fail path. Leave it
// false for any production-shaped caller.
func Jailbreak(log zerolog.Logger, site string, maxSpinCnt int64, panicOnStall bool, cond func() bool) {
	var spinCnt int64
	warned := false
	for cond() {
		if maxSpinCnt >= 0 && spinCnt == maxSpinCnt {
			if panicOnStall {
				log.Fatal().Str("site", site).Int64("spins", spinCnt).Msg("jailbreak spin exceeded bound")
			}
			if !warned {
				log.Warn().Str("site", site).Int64("spins", spinCnt).Msg("jailbreak spin exceeded bound, continuing")
				warned = true
			}
		}
		spinCnt++
		runtime.Gosched()
	}
}

// SpinWhileBoth is the Go analogue of OR_POLL_MAYBE_JAILBREAK: despite that
// macro's name, it spins while *both* cond1 and cond2 hold, checking cond1
// first since it is expected to be the cheaper test. It exits as soon as
// either condition goes false.
func SpinWhileBoth(log zerolog.Logger, site string, maxSpinCnt int64, panicOnStall bool, cond1, cond2 func() bool) {
	var spinCnt int64
	warned := false
	for {
		if !cond1() {
			return
		}
		if !cond2() {
			return
		}
		if maxSpinCnt >= 0 && spinCnt == maxSpinCnt {
			if panicOnStall {
				log.Fatal().Str("site", site).Int64("spins", spinCnt).Msg("jailbreak spin exceeded bound")
			}
			if !warned {
				log.Warn().Str("site", site).Int64("spins", spinCnt).Msg("jailbreak spin exceeded bound, continuing")
				warned = true
			}
		}
		spinCnt++
		runtime.Gosched()
	}
}
