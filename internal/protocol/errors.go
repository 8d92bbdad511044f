package protocol

import "fmt"

// Device error codes reported as !ERROR(n).
const (
	ErrCodeUnknownCommand = 1
	ErrCodeBadParameter   = 2
	ErrCodeOutOfRange     = 3
	ErrCodeNotAvailable   = 4
	ErrCodeBusy           = 5
)

var errorText = map[int]string{
	0:                     "command rejected",
	ErrCodeUnknownCommand: "unknown command",
	ErrCodeBadParameter:   "invalid parameter",
	ErrCodeOutOfRange:     "parameter out of range",
	ErrCodeNotAvailable:   "command not available in current state",
	ErrCodeBusy:           "device busy",
}

// ErrorText returns a readable description for a device error code.
func ErrorText(code int) string {
	if s, ok := errorText[code]; ok {
		return s
	}
	return fmt.Sprintf("device error %d", code)
}
