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
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "scheduling_policy"
	labelContainer   = "container_type"
	labelOutcome     = "outcome"
)

var (
	attemptScheduleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "attempt_schedule_duration_seconds",
		Help:      "Time spent inside AttemptSchedule, including any admission wait.",
		Buckets:   prometheus.DefBuckets,
	}, []string{labelContainer, labelOutcome})

	attemptScheduleOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "attempt_schedule_outcomes_total",
		Help:      "Count of AttemptSchedule outcomes by container type and outcome (hit, hit_after_wake, timeout, miss_after_wake).",
	}, []string{labelContainer, labelOutcome})

	executorCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "registered_executors",
		Help:      "Number of executors currently registered per container type.",
	}, []string{labelContainer})
)

// RegisterMetrics registers this package's collectors with the default
// Prometheus registry. The policy core itself always records to them
// regardless of whether this is called; skipping it (SPEC_FULL.md's
// Config.MetricsEnabled = false) just means they never surface on a
// /metrics endpoint.
func RegisterMetrics() {
	prometheus.MustRegister(attemptScheduleDuration, attemptScheduleOutcomes, executorCount)
}
