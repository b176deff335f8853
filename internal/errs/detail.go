package errs

import "errors"

// Detailed attaches a client-facing message to a sentinel.
type Detailed struct {
	Err error
	Msg string
}

func (d *Detailed) Error() string { return d.Msg }
func (d *Detailed) Unwrap() error { return d.Err }

// With wraps sentinel with a message safe to show to API clients.
func With(sentinel error, msg string) error { return &Detailed{Err: sentinel, Msg: msg} }

// PublicMessage returns the client-facing message attached anywhere in the chain.
func PublicMessage(err error) (string, bool) {
	var d *Detailed
	if errors.As(err, &d) {
		return d.Msg, true
	}
	if ve, ok := AsValidation(err); ok {
		return ve.Message(), true
	}
	return "", false
}
