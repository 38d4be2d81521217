package session

import "errors"

var (
	// ErrAllocation reports a failed relay allocation.
	ErrAllocation = errors.New("relay allocation failed")
	// ErrJoinToken reports a failed join token request.
	ErrJoinToken = errors.New("join token request failed")
	// ErrDirectory reports a failed directory registration, keep-alive or removal.
	ErrDirectory = errors.New("directory request failed")
	// ErrUnknownClient reports an operation on a client that is not in the roster.
	ErrUnknownClient = errors.New("unknown client")

	ErrInvalidPhase      = errors.New("invalid phase for operation")
	ErrInvalidCapacity   = errors.New("max clients must be at least 1")
	ErrSessionTerminated = errors.New("session terminated")
	ErrSceneTransition   = errors.New("scene transition failed")
	ErrSpawn             = errors.New("spawn failed")
)
