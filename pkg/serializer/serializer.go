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

package serializer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nuclio/errors"
	"github.com/vmihailenco/msgpack/v4"
)

// Marker prefixes every serialized object. 0xc1 is never used by msgpack and is never valid
// UTF-8, so serialized objects cannot be confused with plain strings
const Marker byte = 0xc1

type DecodeErrorReason string

const (
	DecodeErrorReasonBadMarker    DecodeErrorReason = "badMarker"
	DecodeErrorReasonInvalidValue DecodeErrorReason = "invalidValue"
	DecodeErrorReasonTruncated    DecodeErrorReason = "truncated"
	DecodeErrorReasonTrailingData DecodeErrorReason = "trailingData"
)

// DecodeError is returned when bytes do not hold a serialized object
type DecodeError struct {
	Reason DecodeErrorReason
	Err    error
}

func (de *DecodeError) Error() string {
	if de.Err == nil {
		return fmt.Sprintf("Failed to deserialize object: %s", de.Reason)
	}

	return fmt.Sprintf("Failed to deserialize object: %s: %s", de.Reason, de.Err.Error())
}

// IsRecoverable returns true if err means "these bytes are not a serialized object", as
// opposed to an I/O failure
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}

	_, isDecodeError := errors.RootCause(err).(*DecodeError)
	return isDecodeError
}

// Serialize encodes an object, prefixed with the marker
func Serialize(object interface{}) ([]byte, error) {
	var buffer bytes.Buffer

	buffer.WriteByte(Marker)

	if err := msgpack.NewEncoder(&buffer).Encode(object); err != nil {
		return nil, errors.Wrapf(err, "Failed to serialize object of type %T", object)
	}

	return buffer.Bytes(), nil
}

// Deserialize decodes data into target, which must be a pointer
func Deserialize(data []byte, target interface{}) error {
	if len(data) == 0 || data[0] != Marker {
		return &DecodeError{Reason: DecodeErrorReasonBadMarker}
	}

	reader := bytes.NewReader(data[1:])

	if err := msgpack.NewDecoder(reader).Decode(target); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return &DecodeError{Reason: DecodeErrorReasonTruncated, Err: err}
		}

		return &DecodeError{Reason: DecodeErrorReasonInvalidValue, Err: err}
	}

	if reader.Len() > 0 {
		return &DecodeError{
			Reason: DecodeErrorReasonTrailingData,
			Err:    errors.Errorf("%d bytes left after object", reader.Len()),
		}
	}

	return nil
}

// DeserializeValue decodes data into a generic value
func DeserializeValue(data []byte) (interface{}, error) {
	var value interface{}

	if err := Deserialize(data, &value); err != nil {
		return nil, err
	}

	return value, nil
}

// SerializeToFile writes an object to path, replacing any previous content atomically
func SerializeToFile(object interface{}, path string) error {
	data, err := Serialize(object)
	if err != nil {
		return errors.Wrap(err, "Failed to serialize object")
	}

	temporaryFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "Failed to create temporary file for %s", path)
	}

	// best effort; after a successful rename the temporary path no longer exists
	defer os.Remove(temporaryFile.Name()) // nolint: errcheck

	if _, err := temporaryFile.Write(data); err != nil {
		temporaryFile.Close() // nolint: errcheck
		return errors.Wrapf(err, "Failed to write object to %s", temporaryFile.Name())
	}

	if err := temporaryFile.Close(); err != nil {
		return errors.Wrapf(err, "Failed to close %s", temporaryFile.Name())
	}

	if err := os.Rename(temporaryFile.Name(), path); err != nil {
		return errors.Wrapf(err, "Failed to replace %s", path)
	}

	return nil
}

// DeserializeFromFile reads an object from path. When target is nil the object is decoded
// into a generic value, otherwise into target (a pointer) which is also returned
func DeserializeFromFile(path string, target interface{}) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read object file %s", path)
	}

	if target == nil {
		value, err := DeserializeValue(data)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to deserialize object file %s", path)
		}

		return value, nil
	}

	if err := Deserialize(data, target); err != nil {
		return nil, errors.Wrapf(err, "Failed to deserialize object file %s", path)
	}

	return target, nil
}
