package errs

import "errors"

// Storage
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrCorruptRecord = errors.New("stored record is unreadable")
)

// Protocol
var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrDuplicateHandler = errors.New("handler already registered")
	ErrNoHandler        = errors.New("no handler registered")
	ErrHandshakeTimeout = errors.New("session handshake timed out")
	ErrPeerNotConnected = errors.New("peer not connected")
	ErrUnknownPeer      = errors.New("unknown peer")
)

// State machine
var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrWrongAssignee     = errors.New("task is assigned to another worker")
	ErrQueueEmpty        = errors.New("worker queue is empty")
)

// Payments
var (
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrStaleNonce       = errors.New("payment nonce is not above the watermark")
	ErrEmptyBatch       = errors.New("proof request has no payments")
	ErrAmountOverflow   = errors.New("payment amount overflows uint64")
)
