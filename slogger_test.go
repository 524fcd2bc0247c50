// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSLogger(t *testing.T) {
	logger := DefaultSLogger()

	// Should return a non-nil logger
	assert.NotNil(t, logger)

	// Should be able to call Debug and Info without panic (discards output)
	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
}

func TestSLoggerAcceptsSlog(t *testing.T) {
	var _ SLogger = slog.New(slog.DiscardHandler)
}
