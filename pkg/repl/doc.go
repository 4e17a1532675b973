/*
Package repl drives one long-lived interpreter subprocess and turns its raw
stdout/stderr byte streams back into one result per submitted evaluation.

# Protocol

Every session gets a random marker. Each submission is wrapped so that the
interpreter prints a start marker, runs the code, and prints an end marker:

	print("<MARKER")
	<code>
	print(">MARKER")

The Framer finds the bytes between the markers on stdout; the Queue pairs each
closed frame with the oldest pending request; stderr collected since the
previous frame is attached to it. Results are delivered to a single handler
goroutine in submission order.

The wire format has no escaping: output that literally contains the marker
corrupts framing. Markers are UUIDs, so this does not happen by accident.

# Lifecycle

A Driver owns exactly one session at a time. Reset kills the current
subprocess, fails every pending request with domain.ErrInterpreterTerminated
and launches a fresh one under a new generation number. Results produced by an
older generation are never delivered with output.
*/
package repl
