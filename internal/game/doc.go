// Package game is a small card game used to exercise the interpreter: a
// library to draw from, a hand, a graveyard, a life total, and replacement
// effects that change what drawing does.
//
// Every effect here is an ordinary function over an interpreter. Effects that
// call other effects do so through interpreter.Apply so their results are
// recorded and replayed.
package game
