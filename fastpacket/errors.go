package fastpacket

import "errors"

// Errors returned by frame and message operations. The text is part of the
// API and matched by tools that wrap this package.
var (
	ErrInvalidParameter         = errors.New("Invalid input parameter")
	ErrEmptyQueue               = errors.New("Message queue is empty")
	ErrFullQueue                = errors.New("Queue is already full")
	ErrTransmissionTypeMismatch = errors.New("Wrong transmission type")
	ErrSequenceCount            = errors.New("Wrong sequence counter")
	ErrSequenceMismatch         = errors.New("Frame is out of sequence")
	ErrFrameLength              = errors.New("Payload must be exactly 8 bytes")
	ErrPayloadTooLong           = errors.New("Payload exceeds 223 bytes")
	ErrNoFirstFrame             = errors.New("Consecutive frame without first frame")
)
