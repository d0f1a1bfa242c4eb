// Package errcode declares the design-level error kinds shared across the
// daemon (spec.md section 7), so callers can switch on the kind of failure
// rather than string-matching messages.
package errcode

import "fmt"

// Code is one of the design-level error kinds.
type Code int

// Error kinds, matching spec.md section 7 exactly.
const (
	InvalidFrame Code = iota
	InvalidTag
	InvalidSignature
	InvalidPoW
	InvalidTimestamp
	InvalidTips
	DuplicateTx
	UnknownTx
	UnknownBlock
	AlreadyInChain
	OrphanTips
	RewindBlocked
	StorageIO
	StorageCorrupt
	StorageNotFound
	PeerTimeout
	PeerDisconnected
	ObjectAlreadyRequested
	NetworkIDMismatch
	VersionMismatch
	Overflow
)

var names = map[Code]string{
	InvalidFrame:           "InvalidFrame",
	InvalidTag:             "InvalidTag",
	InvalidSignature:       "InvalidSignature",
	InvalidPoW:             "InvalidPoW",
	InvalidTimestamp:       "InvalidTimestamp",
	InvalidTips:            "InvalidTips",
	DuplicateTx:            "DuplicateTx",
	UnknownTx:              "UnknownTx",
	UnknownBlock:           "UnknownBlock",
	AlreadyInChain:         "AlreadyInChain",
	OrphanTips:             "OrphanTips",
	RewindBlocked:          "RewindBlocked",
	StorageIO:              "StorageIO",
	StorageCorrupt:         "StorageCorrupt",
	StorageNotFound:        "StorageNotFound",
	PeerTimeout:            "PeerTimeout",
	PeerDisconnected:       "PeerDisconnected",
	ObjectAlreadyRequested: "ObjectAlreadyRequested",
	NetworkIDMismatch:      "NetworkIDMismatch",
	VersionMismatch:        "VersionMismatch",
	Overflow:               "Overflow",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error pairs a Code with a human-readable message.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// New builds an *Error for the given code.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err carries the given Code.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
