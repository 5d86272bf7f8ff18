package opl

import "errors"

var (
	// ErrDomain is returned when an input violates a precondition, such as a
	// negative frequency or time, a block outside 0..7 or a clock outside the
	// 10-16 MHz range.
	ErrDomain = errors.New("value outside domain")

	// ErrRange is returned when a value does not fit the hardware field it is
	// destined for.
	ErrRange = errors.New("value out of range")

	// ErrParse is returned when a pitch string cannot be parsed.
	ErrParse = errors.New("parse error")
)
