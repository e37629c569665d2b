// File: rpc/helpers_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"github.com/rs/zerolog"

	"github.com/momentics/rcom/internal/logging"
)

func testLogger() zerolog.Logger {
	return logging.Component("rpc-test")
}
