// Package progress tracks model downloads by name and streams live updates
// to subscribers. The Tracker stores the latest record per model and fans
// each mutation out to per-subscriber bounded channels; Subscriptions turn
// those channels into heartbeat-padded event streams that end on the first
// complete or error record. Producers are never blocked by slow consumers:
// a full subscriber channel drops that update for that subscriber only.
package progress
