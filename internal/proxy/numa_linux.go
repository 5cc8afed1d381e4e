//go:build linux && (amd64 || arm64)

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

package proxy

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// numaBind pins the calling goroutine's OS thread to the CPUs local to
// node. Real NUMA topology discovery is out of scope (spec §1); this
// derives a single-CPU mask from node % runtime.NumCPU() so the binding call itself
// is exercised without depending on /sys/devices/system/node parsing.
// node < 0 disables binding.
func numaBind(node int) error {
	if node < 0 {
		return nil
	}
	runtime.LockOSThread()

	ncpu := runtime.NumCPU()
	if ncpu == 0 {
		return nil
	}
	cpu := node % ncpu

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity failed: %w", err)
	}
	return nil
}
