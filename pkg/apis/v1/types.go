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

// Package v1 holds the data model shared by the scheduling policy core: the
// container-type enumeration, executor and task-group identifiers, and the
// ExecutorRepresenter capability surface the policy mutates.
package v1

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
)

// ContainerType is a closed enumeration of executor hardware/role classes.
// Any is a wildcard used only for lookups spanning every concrete type; it
// is never the container type of a real executor.
type ContainerType string

const (
	Transient ContainerType = "Transient"
	Reserved  ContainerType = "Reserved"
	Compute   ContainerType = "Compute"
	Storage   ContainerType = "Storage"

	// Any matches every concrete ContainerType when used in a schedule request.
	Any ContainerType = "Any"
)

// ConcreteContainerTypes lists every non-wildcard ContainerType in a stable
// order. Building the candidate list for an Any lookup walks this slice so
// ordering is deterministic across runs.
var ConcreteContainerTypes = []ContainerType{Transient, Reserved, Compute, Storage}

func (c ContainerType) String() string { return string(c) }

// ExecutorId opaquely identifies an executor process.
type ExecutorId string

// TaskGroupId opaquely identifies a task group.
type TaskGroupId string

// TaskGroup is the smallest unit of scheduling: a bundle of tasks dispatched
// together to one executor.
type TaskGroup struct {
	TaskGroupId           TaskGroupId
	RequiredContainerType ContainerType
}

// ScheduledTaskGroup pairs a TaskGroup with dispatch metadata the policy
// never inspects; DispatchMetadata is opaque and exists purely so callers
// can round-trip data (a dispatch id, a deadline, trace context) through
// AttemptSchedule without the core needing to know its shape.
type ScheduledTaskGroup struct {
	TaskGroup
	DispatchMetadata any
}

// ExecutorRepresenter is the capability surface the scheduling policy
// mutates on an executor: its immutable identity and capacity, and its
// mutable running set. Implementations must serialize concurrent access
// themselves or rely on the policy's own lock (the in-repo implementation
// in this package does the latter: it is only ever touched while the
// policy holds its registry lock).
type ExecutorRepresenter interface {
	ExecutorId() ExecutorId
	ContainerType() ContainerType
	Capacity() int
	RunningTaskGroups() sets.Set[TaskGroupId]
	HasFreeSlot() bool
	OnTaskGroupScheduled(stg ScheduledTaskGroup)
	OnTaskGroupExecutionComplete(taskGroupId TaskGroupId)
}

// executor is the default ExecutorRepresenter backing a real executor
// process. It carries no lock of its own: the scheduling policy only ever
// reaches into it while holding its own registry mutex, matching the
// source's model of a single reentrant mutex guarding all mutable state.
type executor struct {
	executorId    ExecutorId
	containerType ContainerType
	capacity      int
	running       sets.Set[TaskGroupId]
}

// NewExecutorRepresenter constructs an ExecutorRepresenter for a real
// executor process. capacity must be positive and containerType must not be
// Any; both are invariants of the data model (§3) and a violation here
// indicates a bug in the container manager, not a condition this
// constructor recovers from.
func NewExecutorRepresenter(id ExecutorId, containerType ContainerType, capacity int) ExecutorRepresenter {
	if containerType == Any {
		panic(fmt.Sprintf("executor %s: containerType cannot be Any", id))
	}
	if capacity <= 0 {
		panic(fmt.Sprintf("executor %s: capacity must be positive, got %d", id, capacity))
	}
	return &executor{
		executorId:    id,
		containerType: containerType,
		capacity:      capacity,
		running:       sets.New[TaskGroupId](),
	}
}

func (e *executor) ExecutorId() ExecutorId    { return e.executorId }
func (e *executor) ContainerType() ContainerType { return e.containerType }
func (e *executor) Capacity() int             { return e.capacity }

func (e *executor) RunningTaskGroups() sets.Set[TaskGroupId] {
	return e.running.Clone()
}

func (e *executor) HasFreeSlot() bool {
	return e.running.Len() < e.capacity
}

func (e *executor) OnTaskGroupScheduled(stg ScheduledTaskGroup) {
	e.running.Insert(stg.TaskGroupId)
}

func (e *executor) OnTaskGroupExecutionComplete(taskGroupId TaskGroupId) {
	e.running.Delete(taskGroupId)
}
