// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/holomush/eventhub/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MALFORMED_COMMAND").Errorf("test error")
	errutil.AssertErrorCode(t, err, "MALFORMED_COMMAND")
}

func TestAssertErrorCode_WrappedError(t *testing.T) {
	inner := oops.Code("UPSTREAM_UNAVAILABLE").Errorf("dial failed")
	errutil.AssertErrorCode(t, oops.With("endpoint", "a").Wrap(inner), "UPSTREAM_UNAVAILABLE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("conn_id", "01HK153X0006AFVGQT5ZYC0GEK").Errorf("test error")
	errutil.AssertErrorContext(t, err, "conn_id", "01HK153X0006AFVGQT5ZYC0GEK")
}
