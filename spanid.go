// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 identifying the span of a single fetch.
//
// The fetchStart, timerFired and fetchDone events of a fetch carry
// the same spanID.
//
// This function panics if the system random number generator fails.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
