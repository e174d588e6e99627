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
	"errors"
	"fmt"

	"github.com/awslabs/operatorpkg/serrors"

	v1 "github.com/nemo-runtime/scheduler/pkg/apis/v1"
)

// ErrUnknownExecutor is returned when an On* lifecycle hook references an
// executor id absent from the cached representer map. Per §7 this indicates
// a precondition violation in the surrounding scheduler, not a condition
// this core retries or recovers from.
var ErrUnknownExecutor = errors.New("scheduling policy: unknown executor")

// newSchedulingError builds the SchedulingError (§7) that OnExecutorAdded and
// OnExecutorRemoved return when refreshing the representer map fails,
// carrying the executor id and container type involved so logs and callers
// can attribute the failure without parsing the error string.
// AttemptSchedule itself never returns an error.
func newSchedulingError(cause error, executorID v1.ExecutorId, containerType v1.ContainerType) error {
	return serrors.Wrap(cause, "executor-id", string(executorID), "container-type", containerType.String())
}

func unknownExecutorError(id v1.ExecutorId) error {
	return serrors.Wrap(fmt.Errorf("%w", ErrUnknownExecutor), "executor-id", string(id))
}
