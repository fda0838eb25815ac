package store

import (
	"fmt"
	"regexp"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Implementation names a store backend.
type Implementation string

const (
	ImplLocal  Implementation = "local"
	ImplMemory Implementation = "memory"
)

// Info describes the current content of a store.
// It is not guaranteed that all fields are filled in or that the information is up-to-date!
type Info struct {
	Impl      Implementation `json:"impl"`
	Entries   int            `json:"entries"`
	SizeBytes int64          `json:"size_bytes"`
	Location  string         `json:"location,omitempty"`
}

// IStore is the storage medium of the configuration cache: a flat namespace of
// keys mapping to opaque blobs.
// All methods return a *Error on failure. Implementations are safe for
// concurrent use.
type IStore interface {
	// Set inserts or replaces the value of a key. The value becomes visible
	// atomically: a concurrent or later Get sees either the old or the complete
	// new value, never a partial one.
	Set(key string, value []byte) (err error)
	// Get returns the value of a key. The boolean return value indicates whether
	// a value for the key was found. The returned slice is owned by the caller.
	Get(key string) (value []byte, loaded bool, err error)
	// Has returns whether a key exists in the store.
	Has(key string) (loaded bool, err error)
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key string) (err error)
	// Keys returns all keys in ascending order.
	Keys() (keys []string, err error)
	// GetInfo returns metadata about the store.
	GetInfo() (info Info, err error)
	// Close releases the store. Every later call returns RetCClosed.
	Close() (err error)
}

// keyPattern restricts keys to names that are valid file names on every platform.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,199}$`)

// ValidateKey returns a RetCInvalidKey error if key cannot be stored.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return NewError(RetCInvalidKey, fmt.Sprintf("invalid key %q", key))
	}
	return nil
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the backend.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCInvalidKey                          // 4: The key cannot be stored.
	RetCClosed                              // 5: The store is closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCInvalidKey:
		return "InvalidKey"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
