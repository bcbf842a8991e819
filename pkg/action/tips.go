package action

import "errors"

// Tipper is implemented by errors that know how the user can resolve them.
type Tipper interface {
	Tip() string
}

// Tip returns the resolution hint carried by err, if any.
func Tip(err error) string {
	var tipper Tipper
	if errors.As(err, &tipper) {
		return tipper.Tip()
	}
	return ""
}
