// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package wire

import (
	"github.com/samber/oops"

	"github.com/holomush/eventhub/pkg/errutil"
)

// Error codes surfaced to clients.
const (
	CodeMalformedCommand = "MALFORMED_COMMAND"
	CodeRateLimited      = "RATE_LIMITED"
)

// ErrMalformedCommand creates an error for an inbound command that cannot be
// decoded. message is safe to show to the client.
func ErrMalformedCommand(message string) error {
	return oops.Code(CodeMalformedCommand).
		With("message", message).
		Errorf("malformed command: %s", message)
}

// ErrRateLimited creates an error for a connection sending commands too fast.
func ErrRateLimited(cooldownMs int64) error {
	return oops.Code(CodeRateLimited).
		With("message", "Too many commands. Please slow down.").
		With("cooldown_ms", cooldownMs).
		Errorf("command rate limit exceeded")
}

func malformed(message string, cause error) error {
	return oops.Code(CodeMalformedCommand).
		With("message", message).
		Wrapf(cause, "malformed command: %s", message)
}

// ClientMessage extracts the client-facing message and code from an error.
// Errors without a client message map to a generic one.
func ClientMessage(err error) (code, message string) {
	const generic = "Unable to process command."
	if err == nil {
		return "", generic
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "", generic
	}
	code = errutil.Code(err)
	if msg, ok := oopsErr.Context()["message"].(string); ok && msg != "" {
		return code, msg
	}
	return code, generic
}
