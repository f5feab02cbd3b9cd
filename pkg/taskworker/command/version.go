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
	"github.com/nuclio/taskworker/pkg/renderer"
	"github.com/nuclio/taskworker/pkg/version"

	"github.com/spf13/cobra"
)

type versionCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	output         string
}

func newVersionCommandeer(rootCommandeer *RootCommandeer) *versionCommandeer {
	commandeer := &versionCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			versionInfo := version.Get()

			return renderer.NewRenderer(cmd.OutOrStdout()).Render(renderer.Format(commandeer.output),
				versionInfo,
				func(rendererInstance *renderer.Renderer) error {
					rendererInstance.RenderLine("%s (commit %s, %s/%s, %s)",
						versionInfo.Label,
						versionInfo.GitCommit,
						versionInfo.OS,
						versionInfo.Arch,
						versionInfo.GoVersion)

					return nil
				})
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
