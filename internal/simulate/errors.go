package simulate

import "errors"

// Sentinel kinds for simulation errors.
var (
	ErrSetup    = errors.New("simulation setup failed")
	ErrDiverged = errors.New("devices did not converge")
)
