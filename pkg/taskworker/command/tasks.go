/*
Copyright 2023 The Nuclio Authors.

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

package command

import (
	"io"
	"sort"
	"strings"

	"github.com/nuclio/taskworker/pkg/renderer"
	"github.com/nuclio/taskworker/pkg/task"

	"github.com/nuclio/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type tasksCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	output         string
}

type taskInfo struct {
	Name        string            `json:"name"`
	Kind        task.Kind         `json:"kind"`
	CoreElement *task.CoreElement `json:"coreElement"`
}

func newTasksCommandeer(rootCommandeer *RootCommandeer) *tasksCommandeer {
	commandeer := &tasksCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"ta"},
		Short:   "Display the tasks this worker can execute",
		RunE: func(cmd *cobra.Command, args []string) error {

			// initialize root
			if err := rootCommandeer.initialize("warn"); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			return commandeer.renderTasks(rootCommandeer.registry.GetDefinitions(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&commandeer.output,
		"output",
		"o",
		string(renderer.FormatText),
		"Output format - \"text\", \"yaml\", or \"json\"")

	commandeer.cmd = cmd

	return commandeer
}

func (t *tasksCommandeer) renderTasks(definitions []*task.Definition, writer io.Writer) error {
	taskInfos := lo.Map(definitions, func(definition *task.Definition, _ int) *taskInfo {
		return &taskInfo{
			Name:        definition.Path + "." + definition.Method,
			Kind:        definition.Kind,
			CoreElement: definition.CoreElement,
		}
	})

	return renderer.NewRenderer(writer).Render(renderer.Format(t.output),
		taskInfos,
		func(rendererInstance *renderer.Renderer) error {
			header := []interface{}{"Path", "Method", "Kind", "Implementation", "Constraints", "IO"}

			records := lo.Map(definitions, func(definition *task.Definition, _ int) []interface{} {
				return []interface{}{
					definition.Path,
					definition.Method,
					definition.Kind,
					definition.CoreElement.ImplementationType,
					formatConstraints(definition.CoreElement.ImplementationConstraints),
					definition.CoreElement.ImplementationIO,
				}
			})

			rendererInstance.RenderTable(header, records)

			return nil
		})
}

func formatConstraints(constraints map[string]string) string {
	formattedConstraints := lo.MapToSlice(constraints, func(key string, value string) string {
		return key + "=" + value
	})

	sort.Strings(formattedConstraints)

	return strings.Join(formattedConstraints, ",")
}
