/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package scheduling

import (
	"sync"

	v1 "github.com/nemo-runtime/scheduler/pkg/apis/v1"
)

// registryEntry is the per-container-type bookkeeping of §3: an ordered
// executor-id sequence, the round-robin cursor into it, and a condition
// variable signalled on any event that may free a slot of this type. Any's
// entry never receives insertions (candidates for Any are the
// concatenation of every concrete type's list, built fresh per selection)
// but still owns a cursor and a cond, since waiters can block on Any.
type registryEntry struct {
	executors []v1.ExecutorId
	nextIndex int
	cond      *sync.Cond
}

func newRegistryEntry(mu *sync.Mutex) *registryEntry {
	return &registryEntry{cond: sync.NewCond(mu)}
}

func indexOfExecutor(ids []v1.ExecutorId, target v1.ExecutorId) int {
	for i, id := range ids {
		if id == target {
			return i
		}
	}
	return -1
}

// insertAt inserts v at position i, clamping i into [0, len(s)] so a stale
// or out-of-range nextIndex degrades to an append rather than panicking.
func insertAt(s []v1.ExecutorId, i int, v v1.ExecutorId) []v1.ExecutorId {
	if i < 0 || i > len(s) {
		i = len(s)
	}
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeAt(s []v1.ExecutorId, i int) []v1.ExecutorId {
	return append(s[:i], s[i+1:]...)
}
