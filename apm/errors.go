// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package apm

import "github.com/pkg/errors"

// Sentinel errors for the taxonomy in spec §7. No code path in the agent
// returns or logs these values: public API failures are logged as plain
// messages and swallowed, and the engine never propagates an error to the
// host application.
var (
	ErrAllocationFailed     = errors.New("apm: allocation failed")
	ErrOsReadFailed         = errors.New("apm: os read failed")
	ErrParseFailed          = errors.New("apm: parse failed")
	ErrTransportFailed      = errors.New("apm: transport failed")
	ErrPreconditionViolated = errors.New("apm: precondition violated")
)
