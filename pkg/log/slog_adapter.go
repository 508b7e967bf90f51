package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	// Add optional identifiers
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}
	if event.Address != "" {
		attrs = append(attrs, slog.String("address", event.Address))
	}

	// Add type-specific attributes
	switch {
	case event.Fragment != nil:
		attrs = append(attrs,
			slog.Int("fragment_size", event.Fragment.Size),
			slog.Uint64("packet_num", uint64(event.Fragment.PacketNum)),
			slog.Bool("truncated", event.Fragment.Truncated),
		)
	case event.Message != nil:
		attrs = append(attrs,
			slog.Uint64("seq_num", uint64(event.Message.SeqNum)),
			slog.Uint64("code", uint64(event.Message.Code)),
			slog.Int("data_len", event.Message.DataLen),
		)
		if event.Message.ResponseTo != 0 {
			attrs = append(attrs, slog.Uint64("response_to", uint64(event.Message.ResponseTo)))
		}
		if event.Message.Result != nil {
			attrs = append(attrs, slog.Uint64("result", uint64(*event.Message.Result)))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Datapoint != nil:
		attrs = append(attrs,
			slog.Uint64("dp_id", uint64(event.Datapoint.ID)),
			slog.Uint64("dp_type", uint64(event.Datapoint.Type)),
			slog.String("dp_value", event.Datapoint.Value),
			slog.Bool("from_device", event.Datapoint.FromDevice),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
