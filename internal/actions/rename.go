// Package actions implements the dashboard's mutating operations and the
// cache keys each one makes stale.
package actions

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dreamware/fleetdash/internal/api"
	"github.com/dreamware/fleetdash/internal/logger"
)

// MaxRobotNameLength is the longest accepted robot name, in characters.
const MaxRobotNameLength = 100

var (
	// ErrInvalidRobotUUID is the cause of a ValidationError for an identifier
	// that is not a version 4 UUID.
	ErrInvalidRobotUUID = errors.New("robot uuid must be a version 4 UUID")
	// ErrInvalidRobotName is the cause of a ValidationError for an empty or
	// overlong name.
	ErrInvalidRobotName = fmt.Errorf("robot name must be 1 to %d characters", MaxRobotNameLength)
)

// NameSetter sends the rename action. *api.Client implements it.
type NameSetter interface {
	SetRobotName(ctx context.Context, req api.SetRobotNameRequest) error
}

var _ NameSetter = (*api.Client)(nil)

// Renamer renames robots.
type Renamer struct {
	setter NameSetter
	logger zerolog.Logger
}

// Option configures a Renamer.
type Option func(*Renamer)

// WithLogger sets the renamer's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Renamer) { r.logger = l }
}

// NewRenamer returns a Renamer sending through setter.
func NewRenamer(setter NameSetter, opts ...Option) *Renamer {
	r := &Renamer{setter: setter, logger: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenameRobot validates its input and issues one rename request. Invalid
// input returns *api.ValidationError without touching the network; request
// failures are returned unchanged. On success the caller should refresh the
// views named by InvalidationKeysFor(robotUUID).
func (r *Renamer) RenameRobot(ctx context.Context, robotUUID, newName string) error {
	if err := ValidateRename(robotUUID, newName); err != nil {
		return err
	}

	err := r.setter.SetRobotName(ctx, api.SetRobotNameRequest{
		RobotUUID:    robotUUID,
		NewRobotName: newName,
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("robot", robotUUID).Msg("rename failed")
		return err
	}

	r.logger.Info().Str("robot", robotUUID).Str("name", newName).Msg("robot renamed")
	return nil
}

// ValidateRename checks a rename request without sending it.
func ValidateRename(robotUUID, newName string) error {
	var violations []string
	var cause error

	if !IsUUIDv4(robotUUID) {
		violations = append(violations, fmt.Sprintf("robot_uuid %q: %v", robotUUID, ErrInvalidRobotUUID))
		cause = ErrInvalidRobotUUID
	}
	if n := utf8.RuneCountInString(newName); n < 1 || n > MaxRobotNameLength {
		violations = append(violations, fmt.Sprintf("new_robot_name: %v (got %d)", ErrInvalidRobotName, n))
		if cause == nil {
			cause = ErrInvalidRobotName
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &api.ValidationError{Path: api.ActionSetRobotNamePath, Violations: violations, Err: cause}
}

// IsUUIDv4 reports whether s is a canonical, hyphenated RFC 4122 version 4 UUID.
func IsUUIDv4(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4 && id.Variant() == uuid.RFC4122
}

// InvalidationKeysFor returns the cached views made stale by renaming
// robotUUID: the online roster, the robot's detail and its network snapshot,
// always in that order.
func InvalidationKeysFor(robotUUID string) []string {
	return []string{
		api.StatsOnlineRobotsPath,
		api.StatsRobotPath(robotUUID),
		api.StatsRobotNetworkPath(robotUUID),
	}
}
