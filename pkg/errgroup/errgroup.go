/*
Copyright The Kubernetes Authors.

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

package errgroup

import (
	"context"
	"runtime/debug"

	"github.com/nuclio/taskworker/pkg/common"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"golang.org/x/sync/errgroup"
)

const DefaultErrgroupConcurrency = 10

type Group struct {
	*errgroup.Group
	logger logger.Logger
}

// WithContext creates a group running at most concurrency functions at once. A
// non-positive concurrency falls back to DefaultErrgroupConcurrency
func WithContext(ctx context.Context, loggerInstance logger.Logger, concurrency int) (*Group, context.Context) {
	newBaseErrgroup, errgroupCtx := errgroup.WithContext(ctx)

	if concurrency <= 0 {
		concurrency = DefaultErrgroupConcurrency
	}

	newBaseErrgroup.SetLimit(concurrency)

	return &Group{
		Group:  newBaseErrgroup,
		logger: loggerInstance,
	}, errgroupCtx
}

// Go runs f in the group, turning a panic into the error the group returns
func (g *Group) Go(actionName string, f func() error) {
	wrapper := func() (err error) {
		defer func() {
			if recoveredErr := recover(); recoveredErr != nil {
				callStack := debug.Stack()
				common.LogPanic(g.logger, actionName, callStack, recoveredErr)
				err = errors.Wrapf(common.ErrorFromRecoveredError(recoveredErr), "%s panicked", actionName)
			}
		}()
		err = f()
		return
	}
	g.Group.Go(wrapper)
}
