// Package log provides structured protocol event logging for the Tuya BLE
// engine. Events are captured at every layer (transport fragments, logical
// frames, session lifecycle, datapoint updates) and encoded as compact CBOR
// records for file capture, or forwarded to slog for console output.
package log
