// errors.go: sentinel errors shared across the package.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package halcyon

import "errors"

var (
	// ErrNotInitialized is returned by operations that require an
	// installed logger when none is present.
	ErrNotInitialized = errors.New("halcyon: not initialized")

	// ErrUnknownCodec is returned by newCodec for an unrecognized
	// Config.Codec value.
	ErrUnknownCodec = errors.New("halcyon: unknown codec")
)
