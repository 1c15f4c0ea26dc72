//go:build !cgo

package liveinput

// NewDriver fails without cgo: rtmidi cannot be linked, so there is no MIDI
// input.
func NewDriver() (Driver, error) {
	return nil, ErrNoDriver
}
