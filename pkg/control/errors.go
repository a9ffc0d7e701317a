package control

import (
	"errors"
	"fmt"
)

// Sentinel errors for common session error conditions.
var (
	// ErrNotConnected is returned when a request is attempted without a
	// live connection to the coordinator.
	ErrNotConnected = errors.New("control: not connected")

	// ErrHandshake is returned when the coordinator accepts the
	// connection but never produces a valid status payload.
	ErrHandshake = errors.New("control: no valid status from coordinator")

	// ErrVolumeOutOfRange is returned when a volume outside [0,100] is
	// requested. Local state is left untouched and no RPC is issued.
	ErrVolumeOutOfRange = errors.New("control: volume out of range")

	// ErrUnknownEntity is returned when an operation names a group,
	// client, or stream that is not in the local mirror.
	ErrUnknownEntity = errors.New("control: unknown entity")
)

// VersionError reports a gated method invoked against a coordinator that is
// too old to support it. It is raised before any network I/O.
type VersionError struct {
	Method   string
	Required string // minimum coordinator version
	Actual   string // connected coordinator version
}

// Error returns the error message naming both versions.
func (e *VersionError) Error() string {
	return fmt.Sprintf("control: %s requires server version >= %s, current version is %s",
		e.Method, e.Required, e.Actual)
}
