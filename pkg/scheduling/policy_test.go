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

package scheduling_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/nemo-runtime/scheduler/pkg/apis/v1"
	"github.com/nemo-runtime/scheduler/pkg/containermanager"
	"github.com/nemo-runtime/scheduler/pkg/scheduling"
)

func schedule(t v1.ContainerType) v1.ScheduledTaskGroup {
	return v1.ScheduledTaskGroup{TaskGroup: v1.TaskGroup{
		TaskGroupId:           v1.TaskGroupId(fmt.Sprintf("tg-%d", time.Now().UnixNano())),
		RequiredContainerType: t,
	}}
}

var _ = Describe("RoundRobin", func() {
	var cm containermanager.ContainerManager

	BeforeEach(func() {
		cm = containermanager.New()
	})

	// S1: three idle Compute executors, capacity 1, return in registry order and wrap nextIndex to 0.
	It("cycles through same-type executors in registry order and wraps the cursor", func() {
		a := v1.NewExecutorRepresenter("a", v1.Compute, 1)
		b := v1.NewExecutorRepresenter("b", v1.Compute, 1)
		c := v1.NewExecutorRepresenter("c", v1.Compute, 1)
		cm.RegisterExecutor(a)
		cm.RegisterExecutor(b)
		cm.RegisterExecutor(c)

		// OnExecutorAdded inserts at the cursor (0 here), so adding c, b, a
		// leaves the registry ordered a, b, c.
		policy := scheduling.New(cm, 0)
		Expect(mustAdd(policy, "c")).To(Succeed())
		Expect(mustAdd(policy, "b")).To(Succeed())
		Expect(mustAdd(policy, "a")).To(Succeed())

		for _, want := range []v1.ExecutorId{"a", "b", "c"} {
			stg := schedule(v1.Compute)
			id, ok, err := policy.AttemptSchedule(ctx, stg)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal(want))
			Expect(policy.OnTaskGroupScheduled(ctx, id, stg)).To(Succeed())
		}

		snap := snapshotFor(policy, v1.Compute)
		Expect(snap.NextIndex).To(Equal(0))
	})

	// S2: all executors full, zero timeout returns an immediate miss.
	It("returns a miss immediately when the timeout is zero and nothing is free", func() {
		a := v1.NewExecutorRepresenter("a", v1.Compute, 1)
		cm.RegisterExecutor(a)
		policy := scheduling.New(cm, 0)
		Expect(mustAdd(policy, "a")).To(Succeed())

		first := schedule(v1.Compute)
		id, ok, err := policy.AttemptSchedule(ctx, first)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(policy.OnTaskGroupScheduled(ctx, id, first)).To(Succeed())

		start := time.Now()
		_, ok, err = policy.AttemptSchedule(ctx, schedule(v1.Compute))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(time.Since(start)).To(BeNumerically("<", 20*time.Millisecond))
	})

	// S2/timeout variant: with a bounded timeout and no completions, the call blocks roughly that long then misses.
	It("returns a miss after the configured timeout elapses with no completions", func() {
		a := v1.NewExecutorRepresenter("a", v1.Compute, 1)
		cm.RegisterExecutor(a)
		policy := scheduling.New(cm, 50*time.Millisecond)
		Expect(mustAdd(policy, "a")).To(Succeed())

		first := schedule(v1.Compute)
		id, ok, err := policy.AttemptSchedule(ctx, first)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(policy.OnTaskGroupScheduled(ctx, id, first)).To(Succeed())

		start := time.Now()
		_, ok, err = policy.AttemptSchedule(ctx, schedule(v1.Compute))
		elapsed := time.Since(start)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(elapsed).To(BeNumerically(">=", 40*time.Millisecond))
	})

	// S3: a completion during the wait wakes AttemptSchedule before the timeout.
	It("wakes and succeeds when a slot frees during the wait", func() {
		a := v1.NewExecutorRepresenter("a", v1.Compute, 1)
		b := v1.NewExecutorRepresenter("b", v1.Compute, 1)
		cm.RegisterExecutor(a)
		cm.RegisterExecutor(b)
		// Adding b then a leaves the registry ordered a, b (insertion at the
		// cursor), so first lands on a and second on b.
		policy := scheduling.New(cm, 2*time.Second)
		Expect(mustAdd(policy, "b")).To(Succeed())
		Expect(mustAdd(policy, "a")).To(Succeed())

		first := schedule(v1.Compute)
		id, ok, err := policy.AttemptSchedule(ctx, first)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(policy.OnTaskGroupScheduled(ctx, id, first)).To(Succeed())

		second := schedule(v1.Compute)
		id2, ok2, err2 := policy.AttemptSchedule(ctx, second)
		Expect(err2).NotTo(HaveOccurred())
		Expect(ok2).To(BeTrue())
		Expect(policy.OnTaskGroupScheduled(ctx, id2, second)).To(Succeed())

		done := make(chan struct{})
		var gotID v1.ExecutorId
		var gotOK bool
		go func() {
			defer close(done)
			gotID, gotOK, _ = policy.AttemptSchedule(ctx, schedule(v1.Compute))
		}()

		time.Sleep(20 * time.Millisecond)
		Expect(policy.OnTaskGroupExecutionComplete(ctx, "b", second.TaskGroupId)).To(Succeed())

		Eventually(done, time.Second).Should(BeClosed())
		Expect(gotOK).To(BeTrue())
		Expect(gotID).To(Equal(v1.ExecutorId("b")))
	})

	// S4: Any concatenates candidates in ConcreteContainerTypes order, cycling across types before repeating.
	It("cycles across container types when scheduling with Any", func() {
		a := v1.NewExecutorRepresenter("a", v1.Compute, 1)
		b := v1.NewExecutorRepresenter("b", v1.Compute, 1)
		x := v1.NewExecutorRepresenter("x", v1.Storage, 1)
		y := v1.NewExecutorRepresenter("y", v1.Storage, 1)
		for _, e := range []v1.ExecutorRepresenter{a, b, x, y} {
			cm.RegisterExecutor(e)
		}
		policy := scheduling.New(cm, 0)
		for _, id := range []v1.ExecutorId{"a", "b", "x", "y"} {
			Expect(mustAdd(policy, id)).To(Succeed())
		}

		var placed []v1.ExecutorId
		for i := 0; i < 4; i++ {
			stg := schedule(v1.Any)
			id, ok, err := policy.AttemptSchedule(ctx, stg)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(policy.OnTaskGroupScheduled(ctx, id, stg)).To(Succeed())
			placed = append(placed, id)
		}
		Expect(placed).To(ConsistOf(v1.ExecutorId("a"), v1.ExecutorId("b"), v1.ExecutorId("x"), v1.ExecutorId("y")))
	})

	// S5: removing the executor at a position before the cursor shifts the cursor left with it
	// (here from 1 to 0), so the executor that was next (b) is still selected next.
	It("decrements the cursor when removing an executor before it", func() {
		a := v1.NewExecutorRepresenter("a", v1.Compute, 1)
		b := v1.NewExecutorRepresenter("b", v1.Compute, 1)
		c := v1.NewExecutorRepresenter("c", v1.Compute, 1)
		for _, e := range []v1.ExecutorRepresenter{a, b, c} {
			cm.RegisterExecutor(e)
		}
		// Insertion at the cursor: adding c, b, a leaves the registry a, b, c.
		policy := scheduling.New(cm, 0)
		for _, id := range []v1.ExecutorId{"c", "b", "a"} {
			Expect(mustAdd(policy, id)).To(Succeed())
		}

		first := schedule(v1.Compute)
		id, ok, err := policy.AttemptSchedule(ctx, first)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(v1.ExecutorId("a")))
		Expect(policy.OnTaskGroupScheduled(ctx, id, first)).To(Succeed())

		cm.Deregister("a")
		_, err = policy.OnExecutorRemoved(ctx, "a")
		Expect(err).NotTo(HaveOccurred())

		next, ok, err := policy.AttemptSchedule(ctx, schedule(v1.Compute))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(next).To(Equal(v1.ExecutorId("b")))
	})

	// S6: removing the executor the cursor currently points at resets the cursor to zero.
	It("resets the cursor to zero when removing the executor it points at", func() {
		a := v1.NewExecutorRepresenter("a", v1.Compute, 1)
		b := v1.NewExecutorRepresenter("b", v1.Compute, 1)
		c := v1.NewExecutorRepresenter("c", v1.Compute, 1)
		for _, e := range []v1.ExecutorRepresenter{a, b, c} {
			cm.RegisterExecutor(e)
		}
		// Insertion at the cursor: adding c, b, a leaves the registry a, b, c.
		policy := scheduling.New(cm, 0)
		for _, id := range []v1.ExecutorId{"c", "b", "a"} {
			Expect(mustAdd(policy, id)).To(Succeed())
		}
		// nextIndex currently 0, points at a. Advance it to point at b by
		// selecting a once without recording the placement, so a stays free.
		first := schedule(v1.Compute)
		id, ok, err := policy.AttemptSchedule(ctx, first)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(v1.ExecutorId("a")))
		// nextIndex now 1, pointing at b; do not record occupation so b/c stay free.

		cm.Deregister("b")
		_, err = policy.OnExecutorRemoved(ctx, "b")
		Expect(err).NotTo(HaveOccurred())

		next, ok, err := policy.AttemptSchedule(ctx, schedule(v1.Compute))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(next).To(Equal(v1.ExecutorId("a")))
	})

	It("returns the running task groups of a removed executor for rescheduling", func() {
		a := v1.NewExecutorRepresenter("a", v1.Compute, 2)
		cm.RegisterExecutor(a)
		policy := scheduling.New(cm, 0)
		Expect(mustAdd(policy, "a")).To(Succeed())

		first := schedule(v1.Compute)
		second := schedule(v1.Compute)
		id1, _, _ := policy.AttemptSchedule(ctx, first)
		Expect(policy.OnTaskGroupScheduled(ctx, id1, first)).To(Succeed())
		id2, _, _ := policy.AttemptSchedule(ctx, second)
		Expect(policy.OnTaskGroupScheduled(ctx, id2, second)).To(Succeed())

		cm.Deregister("a")
		running, err := policy.OnExecutorRemoved(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(running.Len()).To(Equal(2))
		Expect(running.Has(first.TaskGroupId)).To(BeTrue())
		Expect(running.Has(second.TaskGroupId)).To(BeTrue())
	})

	It("rejects lifecycle calls against an unknown executor id", func() {
		policy := scheduling.New(cm, 0)
		_, err := policy.OnExecutorRemoved(ctx, "ghost")
		Expect(err).To(HaveOccurred())
	})
})

func mustAdd(policy *scheduling.RoundRobin, id v1.ExecutorId) error {
	return policy.OnExecutorAdded(context.Background(), id)
}

func snapshotFor(policy *scheduling.RoundRobin, t v1.ContainerType) scheduling.TypeSnapshot {
	for _, s := range policy.Snapshot() {
		if s.ContainerType == t {
			return s
		}
	}
	return scheduling.TypeSnapshot{}
}
