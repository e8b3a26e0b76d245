// Package canonical implements deterministic serialization of normalized
// record payloads. Two payloads that are deep-equal (ignoring object key
// order) always serialize to byte-identical strings; any difference in
// field values, field sets, or array ordering produces a different string.
//
// This is the only serialization that may be used as hashing input for
// on-ledger anchoring. Standard json.Marshal is NOT a substitute: it
// HTML-escapes strings and does not normalize Unicode.
package canonical
