package pdcp

import "errors"

var (
	// ErrLCIDOutOfRange: the id is outside the table.
	ErrLCIDOutOfRange = errors.New("pdcp: logical channel id out of range")
	// ErrBearerInactive: the slot exists but was never activated.
	ErrBearerInactive = errors.New("pdcp: bearer not activated")
	// ErrBearerActive: activation requested for a slot already active.
	ErrBearerActive = errors.New("pdcp: bearer already configured")

	ErrInvalidOptions = errors.New("pdcp: invalid options")
)
