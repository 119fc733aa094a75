// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package hub

import (
	"errors"

	"github.com/samber/oops"
)

// CodeHubClosed is returned by Connect once the hub has shut down.
const CodeHubClosed = "HUB_CLOSED"

// ErrOutboxClosed is returned when pushing to a connection that has gone away.
var ErrOutboxClosed = errors.New("outbox closed")

// ErrHubClosed creates an error for a connection attempt after shutdown.
func ErrHubClosed() error {
	return oops.Code(CodeHubClosed).Errorf("hub is closed")
}
