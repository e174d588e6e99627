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

// Package containermanager implements the authoritative executor registry
// the scheduling policy refreshes its cache from. It is an external
// collaborator in the scheduling-policy spec (§2) — the DAG/IR front end and
// the process that actually discovers/launches executors live outside this
// module — but a small in-memory implementation is provided here so the
// policy can be exercised and tested end to end.
package containermanager

import (
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	v1 "github.com/nemo-runtime/scheduler/pkg/apis/v1"
)

// tombstoneTTL bounds how long a removed executor id is remembered as "known
// gone" before the negative-lookup cache evicts it. Kept short: callers
// retiring an executor only consult the tombstone cache (via Tombstoned) to
// produce a clearer error on a double removal; the policy never reads it.
const tombstoneTTL = 5 * time.Minute

// ContainerManager is the authoritative mapping from executor id to
// ExecutorRepresenter (§2). The scheduling policy calls
// GetExecutorRepresenterMap to refresh its own cache on executor lifecycle
// events; it never mutates the manager directly.
type ContainerManager interface {
	GetExecutorRepresenterMap() (map[v1.ExecutorId]v1.ExecutorRepresenter, error)

	// RegisterExecutor and Deregister are not part of the scheduling-policy
	// contract (§6 only specifies GetExecutorRepresenterMap); they exist so
	// tests and the demo harness can drive lifecycle events realistically.
	RegisterExecutor(executor v1.ExecutorRepresenter)
	Deregister(id v1.ExecutorId)

	// Known, Tombstoned, and IDs are diagnostic reads used by callers
	// retiring an executor (distinguishing "never existed" from "removed
	// recently") and by the demo harness's startup logging; the policy
	// itself never calls them.
	Known(id v1.ExecutorId) bool
	Tombstoned(id v1.ExecutorId) bool
	IDs() []v1.ExecutorId
}

type inMemory struct {
	mu         sync.RWMutex
	executors  map[v1.ExecutorId]v1.ExecutorRepresenter
	tombstones *cache.Cache
}

// New returns an in-memory ContainerManager. Intended for the demo harness
// and for tests; a production deployment's container manager lives outside
// this module entirely (§1).
func New() ContainerManager {
	return &inMemory{
		executors:  make(map[v1.ExecutorId]v1.ExecutorRepresenter),
		tombstones: cache.New(tombstoneTTL, tombstoneTTL/2),
	}
}

func (m *inMemory) RegisterExecutor(executor v1.ExecutorRepresenter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executors[executor.ExecutorId()] = executor
	m.tombstones.Delete(string(executor.ExecutorId()))
}

func (m *inMemory) Deregister(id v1.ExecutorId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.executors, id)
	m.tombstones.SetDefault(string(id), struct{}{})
}

func (m *inMemory) GetExecutorRepresenterMap() (map[v1.ExecutorId]v1.ExecutorRepresenter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs error
	out := make(map[v1.ExecutorId]v1.ExecutorRepresenter, len(m.executors))
	for id, rep := range m.executors {
		if rep.ContainerType() == v1.Any {
			errs = multierr.Append(errs, fmt.Errorf("executor %s: container type cannot be Any", id))
			continue
		}
		out[id] = rep
	}
	return out, errs
}

// Known reports whether id currently refers to a live executor; callers use
// it, together with Tombstoned, to tell "never existed" from "removed
// recently" before retiring an executor. The policy never calls it.
func (m *inMemory) Known(id v1.ExecutorId) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.executors[id]
	return ok
}

// Tombstoned reports whether id was deregistered within tombstoneTTL.
func (m *inMemory) Tombstoned(id v1.ExecutorId) bool {
	_, ok := m.tombstones.Get(string(id))
	return ok
}

// IDs returns a snapshot of live executor ids in no particular order; the
// demo harness logs it once at startup.
func (m *inMemory) IDs() []v1.ExecutorId {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Keys(m.executors)
}
