// Package effect defines the recorded form of an effect call tree.
//
// A Value is the serialized result of one call. A Node pairs that result with
// the ordered records of the calls it made while it ran. Position inside a
// Children slice is the identity of a call; there are no separate keys.
package effect
