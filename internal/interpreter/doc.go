// Package interpreter runs and replays trees of nested effect calls.
//
// Every call routed through Apply gets its own child interpreter with a
// zero-based cursor, so call identity is the position of the call under its
// parent. When a recorded node exists at the current position the call is not
// run; its recorded result is decoded and returned instead. Once the recorded
// nodes at a level are exhausted, calls run for real and their results are
// appended to the record.
//
// Like a fixed hook-call order, the sequence of Apply calls made by a piece of
// logic must be the same on every run over the same state. Logic that does not
// go through Apply leaves no trace and is not memoized.
package interpreter
