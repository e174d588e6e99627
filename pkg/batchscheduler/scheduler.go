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

// Package batchscheduler is a minimal driver around the scheduling policy
// core: it owns a backlog of task groups, calls AttemptSchedule for each,
// and forwards the lifecycle events a real DAG-executing BatchScheduler
// would. It exists to exercise SchedulingPolicy end to end (§2's "external
// collaborator"), not as a production job scheduler — it has no DAG model,
// no dependency resolution between task groups, and no persistence.
package batchscheduler

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	v1 "github.com/nemo-runtime/scheduler/pkg/apis/v1"
	schedlog "github.com/nemo-runtime/scheduler/pkg/log"
	"github.com/nemo-runtime/scheduler/pkg/scheduling"
)

// Policy narrows scheduling.Policy to the subset BatchScheduler drives,
// so tests can substitute a fake without depending on the concrete
// RoundRobin type.
type Policy interface {
	AttemptSchedule(ctx context.Context, stg v1.ScheduledTaskGroup) (v1.ExecutorId, bool, error)
	OnExecutorRemoved(ctx context.Context, id v1.ExecutorId) (sets.Set[v1.TaskGroupId], error)
	OnTaskGroupScheduled(ctx context.Context, id v1.ExecutorId, stg v1.ScheduledTaskGroup) error
	OnTaskGroupExecutionComplete(ctx context.Context, id v1.ExecutorId, taskGroupId v1.TaskGroupId) error
	OnTaskGroupExecutionFailed(ctx context.Context, id v1.ExecutorId, taskGroupId v1.TaskGroupId, cause error) error
}

var _ Policy = (*scheduling.RoundRobin)(nil)

// ContainerManager narrows containermanager.ContainerManager to the
// lifecycle-mutation and diagnostic calls BatchScheduler needs to retire an
// executor.
type ContainerManager interface {
	GetExecutorRepresenterMap() (map[v1.ExecutorId]v1.ExecutorRepresenter, error)
	Deregister(id v1.ExecutorId)
	Known(id v1.ExecutorId) bool
	Tombstoned(id v1.ExecutorId) bool
}

// Result records the outcome of dispatching one task group.
type Result struct {
	TaskGroup  v1.ScheduledTaskGroup
	ExecutorId v1.ExecutorId
	Placed     bool
}

// BatchScheduler drains a backlog of task groups against a Policy,
// one at a time, reinterpreting an empty AttemptSchedule result as
// "try later" per §7 rather than retrying internally.
type BatchScheduler struct {
	policy Policy
}

// New returns a BatchScheduler driving policy.
func New(policy Policy) *BatchScheduler {
	return &BatchScheduler{policy: policy}
}

// DispatchOnce attempts to place every task group in backlog exactly once,
// recording placements via OnTaskGroupScheduled. It does not retry misses;
// callers needing retry-until-placed semantics should re-submit the
// unplaced subset of the returned results after a lifecycle event.
func (s *BatchScheduler) DispatchOnce(ctx context.Context, backlog []v1.ScheduledTaskGroup) ([]Result, error) {
	log := schedlog.FromContext(ctx)
	results := make([]Result, 0, len(backlog))
	for _, stg := range backlog {
		id, ok, err := s.policy.AttemptSchedule(ctx, stg)
		if err != nil {
			return results, err
		}
		if !ok {
			log.V(1).Info("no executor available", "task-group-id", stg.TaskGroupId, "container-type", stg.RequiredContainerType)
			results = append(results, Result{TaskGroup: stg, Placed: false})
			continue
		}
		if err := s.policy.OnTaskGroupScheduled(ctx, id, stg); err != nil {
			return results, err
		}
		results = append(results, Result{TaskGroup: stg, ExecutorId: id, Placed: true})
	}
	return results, nil
}

// Complete forwards a successful task-group completion and frees the
// executor's slot.
func (s *BatchScheduler) Complete(ctx context.Context, id v1.ExecutorId, taskGroupId v1.TaskGroupId) error {
	return s.policy.OnTaskGroupExecutionComplete(ctx, id, taskGroupId)
}

// Fail forwards a task-group failure. The policy frees the slot as on
// completion (§9 open question, resolved in SPEC_FULL.md); re-submitting
// the task group to a future DispatchOnce call is this scheduler's
// responsibility, not the policy's.
func (s *BatchScheduler) Fail(ctx context.Context, id v1.ExecutorId, taskGroupId v1.TaskGroupId, cause error) error {
	return s.policy.OnTaskGroupExecutionFailed(ctx, id, taskGroupId, cause)
}

// RemoveExecutor retires id from cm and the policy, and reconstructs the
// task groups that were running on it as ScheduledTaskGroup values ready to
// hand to a future DispatchOnce backlog. This is the rescheduling half of
// §C.4's demo harness: OnExecutorRemoved only hands back bare task-group
// ids, so the executor's own (now-stale) container type is captured before
// removal to rebuild a schedulable record.
func (s *BatchScheduler) RemoveExecutor(ctx context.Context, cm ContainerManager, id v1.ExecutorId) ([]v1.ScheduledTaskGroup, error) {
	log := schedlog.FromContext(ctx)

	if !cm.Known(id) {
		if cm.Tombstoned(id) {
			return nil, fmt.Errorf("batchscheduler: executor %s was already removed", id)
		}
		return nil, fmt.Errorf("batchscheduler: unknown executor %s", id)
	}

	reps, err := cm.GetExecutorRepresenterMap()
	if err != nil {
		return nil, err
	}
	rep, ok := reps[id]
	if !ok {
		return nil, fmt.Errorf("batchscheduler: unknown executor %s", id)
	}
	containerType := rep.ContainerType()

	cm.Deregister(id)
	running, err := s.policy.OnExecutorRemoved(ctx, id)
	if err != nil {
		return nil, err
	}

	rescheduled := make([]v1.ScheduledTaskGroup, 0, running.Len())
	for tg := range running {
		rescheduled = append(rescheduled, v1.ScheduledTaskGroup{
			TaskGroup: v1.TaskGroup{TaskGroupId: tg, RequiredContainerType: containerType},
		})
	}
	log.Info("executor removed, rescheduling its task groups", "executor-id", id, "container-type", containerType, "rescheduled-count", len(rescheduled))
	return rescheduled, nil
}
