package errors

import (
	"errors"
	"fmt"
	"time"
)

var ErrBusy = errors.New("a diagnostic check is already running")

type InvalidAddressError struct {
	Addr     int
	Min, Max int
}

func (err InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid motor address %d; must be %d-%d", err.Addr, err.Min, err.Max)
}

// TimeoutError is returned when no response arrived before the deadline.
type TimeoutError struct {
	Addr  uint8
	Check string
	After time.Duration
}

func (err TimeoutError) Error() string {
	return fmt.Sprintf("motor %d: %s: no response after %v", err.Addr, err.Check, err.After)
}

// StatusError carries a non zero status byte from a command acknowledgement.
type StatusError struct {
	Addr   uint8
	Check  string
	Status byte
}

func (err StatusError) Error() string {
	return fmt.Sprintf("motor %d: %s: status 0x%02X", err.Addr, err.Check, err.Status)
}

type ShortResponseError struct {
	Addr   uint8
	Check  string
	Length int
	Want   int
}

func (err ShortResponseError) Error() string {
	return fmt.Sprintf("motor %d: %s: response of %d bytes, need %d", err.Addr, err.Check, err.Length, err.Want)
}

// SendError wraps a failure to put the request on the bus.
type SendError struct {
	Addr  uint8
	Check string
	Err   error
}

func (err SendError) Error() string {
	return fmt.Sprintf("motor %d: %s: send failed: %v", err.Addr, err.Check, err.Err)
}

func (err SendError) Unwrap() error {
	return err.Err
}

// IsTimeout reports whether err is, or wraps, a TimeoutError.
func IsTimeout(err error) bool {
	var te TimeoutError
	return errors.As(err, &te)
}
