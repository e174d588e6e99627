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

// Package log sets up the zap-backed logr.Logger this module threads
// through context.Context, following controller-runtime's log.FromContext /
// log.IntoContext convention independent of any Kubernetes controller
// manager.
package log

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
)

// FromContext returns the logr.Logger stored on ctx, or a no-op logger if
// none was ever installed.
func FromContext(ctx context.Context) logr.Logger {
	return ctrllog.FromContext(ctx)
}

// IntoContext returns a copy of ctx carrying logger.
func IntoContext(ctx context.Context, logger logr.Logger) context.Context {
	return ctrllog.IntoContext(ctx, logger)
}

// NewProduction builds a zap-backed logr.Logger at the given level (0 is
// Info, increasing values are more verbose V(n) levels, matching logr
// convention) and installs it as the controller-runtime package default so
// FromContext(ctx) falls back to it when ctx carries no logger of its own.
func NewProduction(verbosity int) logr.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	zl, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	logger := zapr.NewLogger(zl)
	ctrllog.SetLogger(logger)
	return logger
}
