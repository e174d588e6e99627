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

// Package config carries the handful of operator-facing knobs a process
// embedding the scheduling policy core needs at startup.
package config

import "time"

// Config is the one recognized option the scheduling-policy core itself
// owns (SchedulerTimeoutMs) plus the ambient knobs any real deployment of
// it needs but that the core has no opinion about.
type Config struct {
	// SchedulerTimeoutMs is AttemptSchedule's admission-wait bound. Zero
	// means AttemptSchedule never blocks.
	SchedulerTimeoutMs int
	// MetricsEnabled gates registering pkg/scheduling's collectors with the
	// default Prometheus registry.
	MetricsEnabled bool
	// Verbosity is the logr V-level passed to pkg/log.NewProduction.
	Verbosity int
}

// ScheduleTimeout converts SchedulerTimeoutMs to the Duration scheduling.New
// expects.
func (c Config) ScheduleTimeout() time.Duration {
	return time.Duration(c.SchedulerTimeoutMs) * time.Millisecond
}
