// Package replacement substitutes registered alternative handlers for an
// effect's default behavior.
//
// Candidates are stored in the shared state as tagged JSON entries, grouped by
// event key in registration order. When an effect triggers its key, the
// entries are decoded through a Codec, filtered by applicability, and a single
// applicable candidate runs in place of the default behavior.
package replacement
