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

package piper

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/nuclio/errors"
	"golang.org/x/sys/unix"
)

// Pipe is one end of a named pipe shared with the master. Messages are single lines and the
// pipe is opened and closed around each exchange
type Pipe struct {
	Path string
}

func NewPipe(path string) *Pipe {
	return &Pipe{
		Path: path,
	}
}

// ReadLine blocks until a writer opens the pipe and returns the first line written, without
// its terminator. The pipe is closed as soon as the line is read, so a writer holding its end
// open does not stall the reader. A writer that closes without writing yields an empty line
func (p *Pipe) ReadLine() (string, error) {
	pipeFile, err := os.OpenFile(p.Path, os.O_RDONLY, 0)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to open pipe %s for reading", p.Path)
	}

	defer pipeFile.Close() // nolint: errcheck

	line, err := bufio.NewReader(pipeFile).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrapf(err, "Failed to read from pipe %s", p.Path)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// WriteLine blocks until a reader opens the pipe and writes line to it
func (p *Pipe) WriteLine(line string) error {
	pipeFile, err := os.OpenFile(p.Path, os.O_WRONLY, 0)
	if err != nil {
		return errors.Wrapf(err, "Failed to open pipe %s for writing", p.Path)
	}

	if _, err := pipeFile.WriteString(line + "\n"); err != nil {
		pipeFile.Close() // nolint: errcheck
		return errors.Wrapf(err, "Failed to write to pipe %s", p.Path)
	}

	if err := pipeFile.Close(); err != nil {
		return errors.Wrapf(err, "Failed to close pipe %s", p.Path)
	}

	return nil
}

// Poke writes line only if a reader is currently waiting on the pipe. It never blocks, and
// returns an error when nobody is reading
func (p *Pipe) Poke(line string) error {
	fd, err := unix.Open(p.Path, unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return errors.Wrapf(err, "Failed to open pipe %s without blocking", p.Path)
	}

	defer unix.Close(fd) // nolint: errcheck

	if _, err := unix.Write(fd, []byte(line+"\n")); err != nil {
		return errors.Wrapf(err, "Failed to poke pipe %s", p.Path)
	}

	return nil
}
