// Package datapoint maps raw Tuya BLE datapoint payloads to and from typed
// values, driven by a per-product schema.
//
// The wire format carries no type information beyond a one-byte tag; the
// schema is the single source of truth for what a datapoint ID means. A
// decoded value is represented as a tagged variant (Value); datapoints the
// schema does not know are preserved as opaque raw values rather than
// dropped, so undocumented product datapoints survive a round trip.
package datapoint
