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

package file

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nuclio/taskworker/pkg/serializer"
	"github.com/nuclio/taskworker/pkg/storage"
	"github.com/nuclio/taskworker/pkg/task"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// Statistics counts backend activity
type Statistics struct {
	ObjectsRead          uint64
	ObjectsWritten       uint64
	TaskContextsEntered  uint64
	TaskContextsReleased uint64
	WorkersStarted       uint64
	WorkersFinished      uint64
}

// Storage keeps every persistent object as a serialized file named after its key under a
// root directory. Objects taking part in a task are written back when the task context ends
type Storage struct {
	statistics    Statistics
	logger        logger.Logger
	configuration *Configuration
	lock          sync.Mutex
	initialized   bool
}

func NewStorage(parentLogger logger.Logger, configuration *Configuration) (*Storage, error) {
	if configuration.RootPath == "" {
		return nil, errors.New("Root path must not be empty")
	}

	return &Storage{
		logger:        parentLogger.GetChild("storage.file"),
		configuration: configuration,
	}, nil
}

func (s *Storage) Init(configPath string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.MkdirAll(s.configuration.RootPath, os.FileMode(s.configuration.DirectoryMode)); err != nil {
		return errors.Wrapf(err, "Failed to create root %s", s.configuration.RootPath)
	}

	s.initialized = true

	s.logger.DebugWith("Storage initialized",
		"configPath", configPath,
		"rootPath", s.configuration.RootPath)

	return nil
}

func (s *Storage) Finish() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.initialized = false

	s.logger.DebugWith("Storage finished", "statistics", s.GetStatistics())

	return nil
}

func (s *Storage) InitWorkerPostFork() error {
	atomic.AddUint64(&s.statistics.WorkersStarted, 1)
	return nil
}

func (s *Storage) FinishWorkerPostFork() error {
	atomic.AddUint64(&s.statistics.WorkersFinished, 1)
	return nil
}

func (s *Storage) GetByID(key string, target interface{}) (interface{}, error) {
	path, err := s.getObjectPath(key)
	if err != nil {
		return nil, err
	}

	object, err := serializer.DeserializeFromFile(path, target)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read object %s", key)
	}

	atomic.AddUint64(&s.statistics.ObjectsRead, 1)

	return object, nil
}

// Put stores an object under key, replacing any previous version
func (s *Storage) Put(key string, object interface{}) error {
	path, err := s.getObjectPath(key)
	if err != nil {
		return err
	}

	if err := serializer.SerializeToFile(object, path); err != nil {
		return errors.Wrapf(err, "Failed to write object %s", key)
	}

	atomic.AddUint64(&s.statistics.ObjectsWritten, 1)

	return nil
}

func (s *Storage) TaskContext(loggerInstance logger.Logger,
	parameters []*task.Parameter,
	configPath string) (storage.ReleaseFunc, error) {
	if !s.isInitialized() {
		return nil, errors.New("Storage is not initialized")
	}

	persistentObjects := map[string]interface{}{}

	for _, parameter := range parameters {
		if persistent, isPersistent := parameter.Content.(storage.Persistent); isPersistent && persistent.GetID() != "" {
			persistentObjects[persistent.GetID()] = parameter.Content
		}
	}

	atomic.AddUint64(&s.statistics.TaskContextsEntered, 1)

	loggerInstance.DebugWith("Entered storage task context", "numPersistentObjects", len(persistentObjects))

	return func(aborted bool) error {
		atomic.AddUint64(&s.statistics.TaskContextsReleased, 1)

		if aborted {
			loggerInstance.DebugWith("Task context aborted, skipping write back",
				"numPersistentObjects", len(persistentObjects))
			return nil
		}

		for key, object := range persistentObjects {
			if err := s.Put(key, object); err != nil {
				return errors.Wrap(err, "Failed to persist object on task context release")
			}
		}

		return nil
	}, nil
}

// GetStatistics returns a snapshot of the backend counters
func (s *Storage) GetStatistics() Statistics {
	return Statistics{
		ObjectsRead:          atomic.LoadUint64(&s.statistics.ObjectsRead),
		ObjectsWritten:       atomic.LoadUint64(&s.statistics.ObjectsWritten),
		TaskContextsEntered:  atomic.LoadUint64(&s.statistics.TaskContextsEntered),
		TaskContextsReleased: atomic.LoadUint64(&s.statistics.TaskContextsReleased),
		WorkersStarted:       atomic.LoadUint64(&s.statistics.WorkersStarted),
		WorkersFinished:      atomic.LoadUint64(&s.statistics.WorkersFinished),
	}
}

func (s *Storage) isInitialized() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.initialized
}

func (s *Storage) getObjectPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", errors.Errorf("Invalid object key: %q", key)
	}

	return filepath.Join(s.configuration.RootPath, key), nil
}
