// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

// Package sink holds the downstream destinations issues are exported to:
// a search index with its embedding provider, and an xlsx workbook.
package sink

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks a failure of the destination itself rather than of
// the item being written. Callers stop sending items once they see it.
var ErrUnavailable = errors.New("sink unavailable")

// ErrDimensionMismatch is returned when an embedding does not have the
// dimension the index was created with.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

type UnavailableError struct {
	Sink string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Sink, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }
