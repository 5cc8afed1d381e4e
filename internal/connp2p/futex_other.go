//go:build !linux || (!amd64 && !arm64)

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

package connp2p

import (
	"sync/atomic"
	"time"
)

// futexWait and futexWake have no portable equivalent outside Linux's raw
// syscall; this build spins with a short sleep instead. It is only ever
// reached on platforms without SYS_FUTEX, never on the target deployment
// architecture.
func futexWait(addr *uint32, val uint32) error {
	for atomic.LoadUint32(addr) == val {
		time.Sleep(50 * time.Microsecond)
	}
	return nil
}

func futexWake(addr *uint32, n int) error {
	return nil
}
