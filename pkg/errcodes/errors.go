package errcodes

import "fmt"

type Error struct {
	Message string
	Code    string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Message == err.Message && te.Code == err.Code
}

// NotFound returns an error indicating the given resource does not exist.
func NotFound(resource string) error {
	return &Error{
		resource + " not found.",
		"not_found",
	}
}

// StoreCorrupted returns a fatal error for an unreadable persisted store.
// Per-item failures never produce this; it means the store itself needs
// operator intervention (usually a reset).
func StoreCorrupted(store, detail string) error {
	return &Error{
		fmt.Sprintf("%s store is corrupted: %s", store, detail),
		"store_corrupted",
	}
}

// ConfigInvalid returns a fatal error for a config file that loaded but
// failed validation.
func ConfigInvalid(msg string) error {
	return &Error{
		msg,
		"config_invalid",
	}
}
