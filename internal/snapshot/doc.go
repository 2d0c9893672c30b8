// Package snapshot defines the immutable registry snapshot payload that
// flows from the producer through the dispatch channel into the
// reconciliation engine.
//
// A Snapshot is a complete enumeration of every service, its registered
// instances, and its declared dependency at one point in time. It is never
// a diff: the consumer applies the whole snapshot and sweeps everything the
// snapshot does not mention.
//
// The package owns three concerns:
//   - the wire model (Snapshot, ServiceRecord, InstanceRecord) and its
//     normalization rules (NFC keys, sorted, deduplicated)
//   - schema validation of inbound payloads against an embedded CUE schema
//   - canonical serialization for checksums and golden tests
package snapshot
