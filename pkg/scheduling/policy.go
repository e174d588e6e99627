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

// Package scheduling implements the scheduling policy core: a thread-safe,
// blocking, per-container-type round-robin dispatcher over a fleet of
// executors grouped by container type.
package scheduling

import (
	"context"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"

	v1 "github.com/nemo-runtime/scheduler/pkg/apis/v1"
	schedlog "github.com/nemo-runtime/scheduler/pkg/log"
)

// ContainerManager is the read-only view the policy refreshes its executor
// cache from (§6). It is satisfied by pkg/containermanager.ContainerManager;
// declared again here, narrowed to the one method the policy actually
// calls, so this package does not import the container manager's
// lifecycle-mutation surface.
type ContainerManager interface {
	GetExecutorRepresenterMap() (map[v1.ExecutorId]v1.ExecutorRepresenter, error)
}

// Policy is the capability surface a BatchScheduler drives (§4.1). Only
// RoundRobin is specified by this core; the interface exists so alternate
// placement strategies (work-stealing, locality-aware, ...) could be added
// later without touching call sites — all such strategies are explicitly
// out of scope here (§1 Non-goals).
type Policy interface {
	AttemptSchedule(ctx context.Context, stg v1.ScheduledTaskGroup) (v1.ExecutorId, bool, error)
	OnExecutorAdded(ctx context.Context, id v1.ExecutorId) error
	OnExecutorRemoved(ctx context.Context, id v1.ExecutorId) (sets.Set[v1.TaskGroupId], error)
	OnTaskGroupScheduled(ctx context.Context, id v1.ExecutorId, stg v1.ScheduledTaskGroup) error
	OnTaskGroupExecutionComplete(ctx context.Context, id v1.ExecutorId, taskGroupId v1.TaskGroupId) error
	OnTaskGroupExecutionFailed(ctx context.Context, id v1.ExecutorId, taskGroupId v1.TaskGroupId, cause error) error
	Snapshot() []TypeSnapshot
}

// TypeSnapshot is a point-in-time, lock-protected view of one container
// type's registry, used by diagnostics and tests to assert §8's invariants
// without reaching into RoundRobin's private state.
type TypeSnapshot struct {
	ContainerType v1.ContainerType
	ExecutorCount int
	FreeSlotCount int
	NextIndex     int
}

// RoundRobin is the round-robin SchedulingPolicy of §4.1.1. A single
// reentrant-in-spirit mutex (Go's sync.Mutex is not reentrant, but every
// method here acquires it exactly once and never calls another exported
// method while holding it) guards executors, nextIndex, and executorMap;
// each container type's registryEntry owns a condition variable tied to
// that same mutex.
type RoundRobin struct {
	mu               sync.Mutex
	registry         map[v1.ContainerType]*registryEntry
	executorMap      map[v1.ExecutorId]v1.ExecutorRepresenter
	containerManager ContainerManager
	timeout          time.Duration
}

var _ Policy = (*RoundRobin)(nil)

// New constructs a RoundRobin policy. scheduleTimeout is §6's
// SchedulerTimeoutMs; zero means AttemptSchedule never blocks.
func New(containerManager ContainerManager, scheduleTimeout time.Duration) *RoundRobin {
	rr := &RoundRobin{
		registry:         make(map[v1.ContainerType]*registryEntry),
		executorMap:      make(map[v1.ExecutorId]v1.ExecutorRepresenter),
		containerManager: containerManager,
		timeout:          scheduleTimeout,
	}
	rr.registry[v1.Any] = newRegistryEntry(&rr.mu)
	return rr
}

func (rr *RoundRobin) ensureEntryLocked(t v1.ContainerType) *registryEntry {
	e, ok := rr.registry[t]
	if !ok {
		e = newRegistryEntry(&rr.mu)
		rr.registry[t] = e
	}
	return e
}

func (rr *RoundRobin) refreshExecutorMapLocked() error {
	m, err := rr.containerManager.GetExecutorRepresenterMap()
	if err != nil {
		return err
	}
	rr.executorMap = m
	return nil
}

// candidatesLocked builds C from §4.1.1 step 1.
func (rr *RoundRobin) candidatesLocked(t v1.ContainerType) []v1.ExecutorId {
	if t != v1.Any {
		return rr.registry[t].executors
	}
	var out []v1.ExecutorId
	for _, u := range v1.ConcreteContainerTypes {
		if e, ok := rr.registry[u]; ok {
			out = append(out, e.executors...)
		}
	}
	return out
}

// selectLocked is the round-robin selection algorithm of §4.1.1, steps 2-5.
func (rr *RoundRobin) selectLocked(t v1.ContainerType, entry *registryEntry) (v1.ExecutorId, bool) {
	candidates := rr.candidatesLocked(t)
	n := len(candidates)
	if n == 0 {
		return "", false
	}
	start := entry.nextIndex % n
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		id := candidates[idx]
		rep, ok := rr.executorMap[id]
		if ok && rep.HasFreeSlot() {
			entry.nextIndex = (idx + 1) % n
			return id, true
		}
	}
	return "", false
}

// waitForSlotLocked blocks on entry.cond until either a signal arrives or
// rr.timeout elapses, releasing rr.mu for the duration exactly once and
// reacquiring it before returning (sync.Cond's own contract). The timeout
// is enforced by a one-shot timer goroutine that signals the same cond; a
// concurrent real signal can race it and be consumed by a different
// waiter on the same cond, in which case this call simply rides out its
// own timer and returns on miss, consistent with §5's "no starvation
// freedom across calls".
func (rr *RoundRobin) waitForSlotLocked(entry *registryEntry) {
	if rr.timeout <= 0 {
		return
	}
	timer := time.AfterFunc(rr.timeout, func() {
		rr.mu.Lock()
		entry.cond.Signal()
		rr.mu.Unlock()
	})
	defer timer.Stop()
	entry.cond.Wait()
}

// AttemptSchedule implements §4.1's AttemptSchedule / §4.1.2's state
// machine.
func (rr *RoundRobin) AttemptSchedule(ctx context.Context, stg v1.ScheduledTaskGroup) (v1.ExecutorId, bool, error) {
	t := stg.RequiredContainerType
	start := time.Now()
	log := schedlog.FromContext(ctx)

	rr.mu.Lock()
	entry := rr.ensureEntryLocked(t)

	if id, ok := rr.selectLocked(t, entry); ok {
		rr.mu.Unlock()
		recordAttempt(t, "hit", time.Since(start))
		log.V(1).Info("scheduled task group", "task-group-id", stg.TaskGroupId, "container-type", t, "executor-id", id)
		return id, true, nil
	}

	if rr.timeout <= 0 {
		rr.mu.Unlock()
		recordAttempt(t, "timeout", time.Since(start))
		return "", false, nil
	}

	rr.waitForSlotLocked(entry)
	id, ok := rr.selectLocked(t, entry)
	rr.mu.Unlock()

	if ok {
		recordAttempt(t, "hit_after_wake", time.Since(start))
		log.V(1).Info("scheduled task group after wake", "task-group-id", stg.TaskGroupId, "container-type", t, "executor-id", id)
		return id, true, nil
	}
	recordAttempt(t, "miss_after_wake", time.Since(start))
	return "", false, nil
}

// OnExecutorAdded implements §4.1's OnExecutorAdded.
func (rr *RoundRobin) OnExecutorAdded(ctx context.Context, id v1.ExecutorId) error {
	rr.mu.Lock()
	if err := rr.refreshExecutorMapLocked(); err != nil {
		rr.mu.Unlock()
		return newSchedulingError(err, id, "")
	}
	rep, ok := rr.executorMap[id]
	if !ok {
		rr.mu.Unlock()
		return unknownExecutorError(id)
	}
	t := rep.ContainerType()
	entry := rr.ensureEntryLocked(t)
	entry.executors = insertAt(entry.executors, entry.nextIndex, id)
	executorCount.WithLabelValues(t.String()).Set(float64(len(entry.executors)))

	anyEntry := rr.ensureEntryLocked(v1.Any)
	entry.cond.Signal()
	anyEntry.cond.Signal()
	rr.mu.Unlock()

	schedlog.FromContext(ctx).Info("executor added", "executor-id", id, "container-type", t)
	return nil
}

// OnExecutorRemoved implements §4.1's OnExecutorRemoved.
func (rr *RoundRobin) OnExecutorRemoved(ctx context.Context, id v1.ExecutorId) (sets.Set[v1.TaskGroupId], error) {
	rr.mu.Lock()
	rep, ok := rr.executorMap[id]
	if !ok {
		rr.mu.Unlock()
		return nil, unknownExecutorError(id)
	}
	t := rep.ContainerType()
	entry := rr.ensureEntryLocked(t)

	if pos := indexOfExecutor(entry.executors, id); pos >= 0 {
		switch {
		case pos < entry.nextIndex:
			entry.nextIndex--
		case pos == entry.nextIndex:
			entry.nextIndex = 0
		}
		entry.executors = removeAt(entry.executors, pos)
	}
	executorCount.WithLabelValues(t.String()).Set(float64(len(entry.executors)))

	running := rep.RunningTaskGroups()
	err := rr.refreshExecutorMapLocked()
	rr.mu.Unlock()

	if err != nil {
		return running, newSchedulingError(err, id, t)
	}
	schedlog.FromContext(ctx).Info("executor removed", "executor-id", id, "container-type", t, "rescheduled-task-groups", running.Len())
	return running, nil
}

// OnTaskGroupScheduled implements §4.1's OnTaskGroupScheduled.
func (rr *RoundRobin) OnTaskGroupScheduled(ctx context.Context, id v1.ExecutorId, stg v1.ScheduledTaskGroup) error {
	rr.mu.Lock()
	rep, ok := rr.executorMap[id]
	if !ok {
		rr.mu.Unlock()
		return unknownExecutorError(id)
	}
	rep.OnTaskGroupScheduled(stg)
	rr.mu.Unlock()

	schedlog.FromContext(ctx).V(1).Info("task group scheduled", "executor-id", id, "task-group-id", stg.TaskGroupId)
	return nil
}

// OnTaskGroupExecutionComplete implements §4.1's
// OnTaskGroupExecutionComplete.
func (rr *RoundRobin) OnTaskGroupExecutionComplete(ctx context.Context, id v1.ExecutorId, taskGroupId v1.TaskGroupId) error {
	rr.mu.Lock()
	rep, ok := rr.executorMap[id]
	if !ok {
		rr.mu.Unlock()
		return unknownExecutorError(id)
	}
	rep.OnTaskGroupExecutionComplete(taskGroupId)
	t := rep.ContainerType()
	rr.ensureEntryLocked(t).cond.Signal()
	rr.ensureEntryLocked(v1.Any).cond.Signal()
	rr.mu.Unlock()

	schedlog.FromContext(ctx).V(1).Info("task group execution complete", "executor-id", id, "task-group-id", taskGroupId, "container-type", t)
	return nil
}

// OnTaskGroupExecutionFailed resolves the open question of §9: failure
// frees the slot exactly like completion (an unhandled failure must not
// permanently burn capacity) but is logged at Error level with cause so
// the BatchScheduler can tell "completed" apart from "failed" in its own
// retry bookkeeping. Rescheduling remains the caller's responsibility.
func (rr *RoundRobin) OnTaskGroupExecutionFailed(ctx context.Context, id v1.ExecutorId, taskGroupId v1.TaskGroupId, cause error) error {
	rr.mu.Lock()
	rep, ok := rr.executorMap[id]
	if !ok {
		rr.mu.Unlock()
		return unknownExecutorError(id)
	}
	rep.OnTaskGroupExecutionComplete(taskGroupId)
	t := rep.ContainerType()
	rr.ensureEntryLocked(t).cond.Signal()
	rr.ensureEntryLocked(v1.Any).cond.Signal()
	rr.mu.Unlock()

	schedlog.FromContext(ctx).Error(cause, "task group execution failed", "executor-id", id, "task-group-id", taskGroupId, "container-type", t)
	return nil
}

// Snapshot returns a lock-protected view of every registered container
// type's registry state.
func (rr *RoundRobin) Snapshot() []TypeSnapshot {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	out := make([]TypeSnapshot, 0, len(rr.registry))
	for t, entry := range rr.registry {
		free := 0
		for _, id := range entry.executors {
			if rep, ok := rr.executorMap[id]; ok && rep.HasFreeSlot() {
				free++
			}
		}
		out = append(out, TypeSnapshot{
			ContainerType: t,
			ExecutorCount: len(entry.executors),
			FreeSlotCount: free,
			NextIndex:     entry.nextIndex,
		})
	}
	return out
}

func recordAttempt(t v1.ContainerType, outcome string, d time.Duration) {
	attemptScheduleDuration.WithLabelValues(t.String(), outcome).Observe(d.Seconds())
	attemptScheduleOutcomes.WithLabelValues(t.String(), outcome).Inc()
}
