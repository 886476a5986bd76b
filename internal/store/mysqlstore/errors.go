// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package mysqlstore

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isContextCanceledError reports whether err stems from context
// cancellation, the same classification the teacher's
// app/monitor/error_classify.go applies before deciding whether a failure
// is worth logging as an error versus a routine shutdown.
func isContextCanceledError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context canceled") || strings.Contains(msg, "context deadline exceeded")
}

// isNotFoundError reports whether err indicates a missing row, generalizing
// the teacher's isContainerNotFoundError from Docker's errdefs to GORM's
// own not-found sentinel.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
