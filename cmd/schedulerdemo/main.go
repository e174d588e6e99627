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

// Command schedulerdemo wires the scheduling policy core to an in-memory
// container manager and a fixed backlog of task groups, and prints the
// resulting placements. It is a demonstration / manual-test harness, not a
// production entry point — a real deployment embeds pkg/scheduling inside
// a BatchScheduler that owns its own process lifecycle and RPC transport.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	v1 "github.com/nemo-runtime/scheduler/pkg/apis/v1"
	"github.com/nemo-runtime/scheduler/pkg/batchscheduler"
	"github.com/nemo-runtime/scheduler/pkg/config"
	"github.com/nemo-runtime/scheduler/pkg/containermanager"
	"github.com/nemo-runtime/scheduler/pkg/log"
	"github.com/nemo-runtime/scheduler/pkg/scheduling"
)

func main() {
	var (
		cfg             config.Config
		computeCount    int
		computeCapacity int
	)
	pflag.IntVar(&cfg.SchedulerTimeoutMs, "schedule-timeout-ms", 2000, "AttemptSchedule admission wait, in milliseconds")
	pflag.BoolVar(&cfg.MetricsEnabled, "metrics-enabled", true, "register pkg/scheduling's collectors with the default Prometheus registry")
	pflag.IntVar(&cfg.Verbosity, "verbosity", 0, "log verbosity (higher is more verbose)")
	pflag.IntVar(&computeCount, "compute-executors", 2, "number of Compute executors to seed")
	pflag.IntVar(&computeCapacity, "compute-capacity", 1, "capacity per Compute executor")
	pflag.Parse()

	if cfg.MetricsEnabled {
		scheduling.RegisterMetrics()
	}

	logger := log.NewProduction(cfg.Verbosity)
	ctx := log.IntoContext(context.Background(), logger)

	cm := containermanager.New()
	policy := scheduling.New(cm, cfg.ScheduleTimeout())
	for i := 0; i < computeCount; i++ {
		id := v1.ExecutorId(fmt.Sprintf("compute-%d", i))
		cm.RegisterExecutor(v1.NewExecutorRepresenter(id, v1.Compute, computeCapacity))
		if err := policy.OnExecutorAdded(ctx, id); err != nil {
			logger.Error(err, "failed to register executor", "executor-id", id)
			os.Exit(1)
		}
	}
	logger.Info("seeded executors", "executor-ids", cm.IDs())

	scheduler := batchscheduler.New(policy)

	backlog := make([]v1.ScheduledTaskGroup, 0, computeCount+1)
	for i := 0; i < computeCount+1; i++ {
		backlog = append(backlog, v1.ScheduledTaskGroup{
			TaskGroup: v1.TaskGroup{
				TaskGroupId:           v1.TaskGroupId(uuid.NewString()),
				RequiredContainerType: v1.Compute,
			},
			DispatchMetadata: i,
		})
	}

	results, err := scheduler.DispatchOnce(ctx, backlog)
	if err != nil {
		logger.Error(err, "dispatch failed")
		os.Exit(1)
	}
	printResults(results)

	// Retire the first seeded executor to demonstrate the reschedule path:
	// whatever was running on it comes back as a fresh backlog entry.
	if computeCount > 0 {
		retired := v1.ExecutorId("compute-0")
		rescheduled, err := scheduler.RemoveExecutor(ctx, cm, retired)
		if err != nil {
			logger.Error(err, "failed to remove executor", "executor-id", retired)
			os.Exit(1)
		}
		if len(rescheduled) > 0 {
			results, err = scheduler.DispatchOnce(ctx, rescheduled)
			if err != nil {
				logger.Error(err, "rescheduling dispatch failed")
				os.Exit(1)
			}
			printResults(results)
		}
	}
}

func printResults(results []batchscheduler.Result) {
	for _, r := range results {
		if r.Placed {
			fmt.Printf("%s -> %s\n", r.TaskGroup.TaskGroupId, r.ExecutorId)
		} else {
			fmt.Printf("%s -> unplaced\n", r.TaskGroup.TaskGroupId)
		}
	}
}
