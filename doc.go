// Package tradebook turns broker-exported execution logs into round-trip
// trades.
//
// The core functionalities include:
//   - Format Detection: sniffing which broker produced an export from its
//     header line(s).
//   - Row Normalization: mapping each broker's columns into a canonical
//     [Execution], decoding composite option and future symbols into an
//     [Instrument].
//   - Position Reconstruction: a per-symbol state machine that replays
//     executions in time order, optionally on top of an already open
//     position, and emits closed [Trade]s plus at most one open snapshot.
//   - Deduplication: an execution identity rule so that re-uploading an
//     overlapping file never double counts a fill.
//   - Trade Book: a human-readable JSONL persistence of trades that can seed
//     the next import and be patched once an identifier gets resolved.
//
// Identifier resolution lives in the resolver package, broker adapters in the
// broker package and the end to end pipeline in the importer package.
package tradebook
