/*
Copyright 2017 The Nuclio Authors.

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

package renderer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nuclio/errors"
	"sigs.k8s.io/yaml"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type Renderer struct {
	output io.Writer
}

func NewRenderer(output io.Writer) *Renderer {
	return &Renderer{
		output: output,
	}
}

// Render writes items in the given format. Text output is delegated to renderText
func (r *Renderer) Render(format Format, items interface{}, renderText func(*Renderer) error) error {
	switch format {
	case FormatText:
		return renderText(r)
	case FormatYAML:
		return r.RenderYAML(items)
	case FormatJSON:
		return r.RenderJSON(items)
	}

	return errors.Errorf("Unknown output format: %s", format)
}

func (r *Renderer) RenderTable(header []interface{}, records [][]interface{}) {
	tw := table.NewWriter()
	tw.SetOutputMirror(r.output)
	tw.SetStyle(table.Style{
		Name: "TaskWorker",
		Box: table.BoxStyle{
			MiddleVertical: "|",
			PaddingLeft:    " ",
			PaddingRight:   " ",
		},
		Options: table.Options{
			DoNotColorBordersAndSeparators: true,
			SeparateColumns:                true,
		},
		Color:  table.ColorOptionsDefault,
		Format: table.FormatOptionsDefault,
		HTML:   table.DefaultHTMLOptions,
		Title:  table.TitleOptionsDefault,
	})

	tw.AppendHeader(toTableRow(header), table.RowConfig{})

	for _, record := range records {
		tw.AppendRow(toTableRow(record), table.RowConfig{})
	}

	tw.Render()
}

// RenderLine writes a single formatted line
func (r *Renderer) RenderLine(format string, args ...interface{}) {
	fmt.Fprintf(r.output, format+"\n", args...) // nolint: errcheck
}

func (r *Renderer) RenderYAML(items interface{}) error {
	body, err := yaml.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "Failed to render YAML")
	}

	fmt.Fprint(r.output, string(body)) // nolint: errcheck

	return nil
}

func (r *Renderer) RenderJSON(items interface{}) error {
	body, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "Failed to render JSON")
	}

	var indentedBody bytes.Buffer
	if err := json.Indent(&indentedBody, body, "", "\t"); err != nil {
		return errors.Wrap(err, "Failed to indent JSON")
	}

	fmt.Fprintln(r.output, indentedBody.String()) // nolint: errcheck

	return nil
}

func toTableRow(row []interface{}) table.Row {
	tableRow := make(table.Row, len(row))
	copy(tableRow, row)

	return tableRow
}
