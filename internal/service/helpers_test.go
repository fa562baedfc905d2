package service

import (
	"context"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type capturingRecorder struct {
	events []AuditEvent
}

func (r *capturingRecorder) Record(_ context.Context, event AuditEvent) {
	r.events = append(r.events, event)
}
