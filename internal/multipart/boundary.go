// Package multipart implements the multipart/form-data body parser of
// spec §4.G: a Knuth-Morris-Pratt boundary scan feeding a pull-based Part
// iterator, plus the form-parameter/file-upload routing and size-limit
// policy layered on top of it.
package multipart

import "fmt"

// ParseError reports a malformed boundary sequence or an unexpected end of
// stream while scanning for a part boundary.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("multipart: %s", e.Reason)
}

// kmpFailure builds the standard KMP partial-match (failure) table for
// pattern: failure[i] is the length of the longest proper prefix of
// pattern[:i+1] that is also a suffix of it.
func kmpFailure(pattern []byte) []int {
	failure := make([]int, len(pattern))
	k := 0
	for i := 1; i < len(pattern); i++ {
		for k > 0 && pattern[i] != pattern[k] {
			k = failure[k-1]
		}
		if pattern[i] == pattern[k] {
			k++
		}
		failure[i] = k
	}
	return failure
}

// automaton is an incremental KMP matcher. Bytes are fed one at a time;
// bytes that fall out of a candidate match (because the match failed and
// the failure table shortens the matched prefix) are returned so the
// caller can forward them downstream, mirroring the "keep-region" buffer
// discipline described for the boundary scan: only the currently
// candidate bytes (at most len(pattern)-1 of them) are ever held back
// from the part body.
type automaton struct {
	pattern []byte
	failure []int
	state   int
	held    []byte // bytes currently considered part of a candidate match
}

func newAutomaton(pattern []byte) *automaton {
	return &automaton{
		pattern: pattern,
		failure: kmpFailure(pattern),
	}
}

func (a *automaton) reset() {
	a.state = 0
	a.held = a.held[:0]
}

// feed processes one input byte. It returns the bytes that can safely be
// released to the caller (never part of a future match) and whether the
// pattern has now fully matched (in which case held holds exactly
// pattern, and the caller should call reset before reuse).
func (a *automaton) feed(b byte) (released []byte, matched bool) {
	for a.state > 0 && b != a.pattern[a.state] {
		oldState := a.state
		a.state = a.failure[a.state-1]
		released = append(released, a.held[:oldState-a.state]...)
		a.held = a.held[oldState-a.state:]
	}
	if b == a.pattern[a.state] {
		a.state++
		a.held = append(a.held, b)
	} else {
		released = append(released, b)
	}
	if a.state == len(a.pattern) {
		return released, true
	}
	return released, false
}
