// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package access

import "errors"

var (
	// ErrInvalidSelection indicates the requested model is outside the allowed set or selection is locked.
	ErrInvalidSelection = errors.New("access: invalid model selection")
	// ErrPersistenceWrite signals that the selected model could not be written to its backend.
	ErrPersistenceWrite = errors.New("access: persistence write failed")
	// ErrUnknownModel tells the caller the model id is not part of the catalog.
	ErrUnknownModel = errors.New("access: unknown model id")
)
