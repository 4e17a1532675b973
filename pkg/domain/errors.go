package domain

import "errors"

// ErrLaunchFailure is returned when the interpreter subprocess cannot be started.
var ErrLaunchFailure = errors.New("interpreter launch failed")

// ErrProtocolDesync is returned when a frame closes with no pending request,
// meaning stdout and the request queue no longer agree.
var ErrProtocolDesync = errors.New("interpreter protocol desynchronized")

// ErrInterpreterTerminated is the outcome of requests dropped because the
// session was reset, crashed or closed before answering.
var ErrInterpreterTerminated = errors.New("interpreter terminated")

// ErrEvaluationTimeout is the outcome of a request whose frame did not close in time.
var ErrEvaluationTimeout = errors.New("evaluation timed out")

// ErrFrameOverflow is returned when the interpreter writes more than the
// configured limit without closing a frame.
var ErrFrameOverflow = errors.New("frame buffer limit exceeded")

// ErrTokenizerFailure wraps errors returned by a tokenizer for a whole batch.
var ErrTokenizerFailure = errors.New("tokenizer failed")

// ErrUnknownLanguage is returned by tokenizers that have no lexer for a language tag.
var ErrUnknownLanguage = errors.New("unknown language")

// ErrDriverClosed is returned by operations on a closed session driver.
var ErrDriverClosed = errors.New("session driver closed")

// ErrTokensNotFound is returned by token stores on a cache miss.
var ErrTokensNotFound = errors.New("tokens not found")
