package observability

import (
	"log/slog"

	"lendledger/core/events"
	"lendledger/core/types"
	"lendledger/state"
)

// eventPayload is implemented by events that carry a structured payload.
type eventPayload interface {
	Event() *types.Event
}

// NewSinkEmitter returns an emitter that counts every ledger notification,
// logs it, and appends it to the durable journal. Emission is fire-and-forget:
// journal failures are logged, never surfaced to the transition that emitted.
func NewSinkEmitter(logger *slog.Logger, journal *state.EventJournal) events.Emitter {
	return events.EmitterFunc(func(evt events.Event) {
		if evt == nil {
			return
		}
		Ledger().RecordEvent(evt.EventType())

		payload, ok := evt.(eventPayload)
		if !ok || payload.Event() == nil {
			return
		}
		record := payload.Event()
		if logger != nil {
			attrs := make([]any, 0, 2*len(record.Attributes)+2)
			attrs = append(attrs, slog.String("event", record.Type))
			for key, value := range record.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
			logger.Info("ledger event", attrs...)
		}
		if journal == nil {
			return
		}
		if err := journal.Append(record); err != nil && logger != nil {
			logger.Error("event journal append failed", slog.Any("error", err))
		}
	})
}
