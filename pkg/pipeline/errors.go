package pipeline

import "errors"

var (
	// ErrContinuationReused is returned when a handler calls next or exit
	// after already having called one of them.
	ErrContinuationReused = errors.New("pipeline: next or exit called more than once")

	// ErrNoContinuation is returned when a handler returns without error
	// and without calling next or exit.
	ErrNoContinuation = errors.New("pipeline: handler returned without calling next or exit")

	// ErrNilResult is returned when a handler called next or exit but
	// neither it nor the continuation produced a Result, typically because
	// the continuation's error was dropped.
	ErrNilResult = errors.New("pipeline: handler produced no result")

	// ErrNilHandler is the panic value used when a middleware or server
	// function is created without a handler.
	ErrNilHandler = errors.New("pipeline: nil handler")
)
