package actions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/fleetdash/internal/api"
)

const robotA = "3f2b8c1e-9a4d-4e6f-8b2a-1c3d5e7f9a0b"

// recordingSetter counts calls and returns a canned error.
type recordingSetter struct {
	calls []api.SetRobotNameRequest
	err   error
}

func (r *recordingSetter) SetRobotName(_ context.Context, req api.SetRobotNameRequest) error {
	r.calls = append(r.calls, req)
	return r.err
}

func TestRenameRobotValidation(t *testing.T) {
	tests := []struct {
		name    string
		uuid    string
		newName string
		cause   error
	}{
		{name: "not a uuid", uuid: "not-a-uuid", newName: "scout", cause: ErrInvalidRobotUUID},
		{name: "uuid v1", uuid: "3f2b8c1e-9a4d-1e6f-8b2a-1c3d5e7f9a0b", newName: "scout", cause: ErrInvalidRobotUUID},
		{name: "braced uuid", uuid: "{" + robotA + "}", newName: "scout", cause: ErrInvalidRobotUUID},
		{name: "urn uuid", uuid: "urn:uuid:" + robotA, newName: "scout", cause: ErrInvalidRobotUUID},
		{name: "empty name", uuid: robotA, newName: "", cause: ErrInvalidRobotName},
		{name: "name too long", uuid: robotA, newName: strings.Repeat("r", MaxRobotNameLength+1), cause: ErrInvalidRobotName},
		{name: "both invalid", uuid: "", newName: "", cause: ErrInvalidRobotUUID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setter := &recordingSetter{}
			err := NewRenamer(setter).RenameRobot(context.Background(), tt.uuid, tt.newName)

			var validationErr *api.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.ErrorIs(t, err, tt.cause)
			assert.Equal(t, api.ActionSetRobotNamePath, validationErr.Path)
			assert.Empty(t, setter.calls, "no request may be sent for invalid input")
		})
	}
}

func TestRenameRobotAcceptsBoundaryNames(t *testing.T) {
	tests := []string{
		"a",
		strings.Repeat("r", MaxRobotNameLength),
		strings.Repeat("機", MaxRobotNameLength), // counted in characters, not bytes
	}

	for _, name := range tests {
		setter := &recordingSetter{}
		err := NewRenamer(setter).RenameRobot(context.Background(), robotA, name)
		require.NoError(t, err)
		require.Len(t, setter.calls, 1)
		assert.Equal(t, api.SetRobotNameRequest{RobotUUID: robotA, NewRobotName: name}, setter.calls[0])
	}
}

func TestRenameRobotPropagatesTransportFailure(t *testing.T) {
	want := &api.TransportError{Method: http.MethodPost, Path: api.ActionSetRobotNamePath, Status: 404, StatusText: "Not Found"}
	setter := &recordingSetter{err: want}

	err := NewRenamer(setter).RenameRobot(context.Background(), robotA, "scout")

	assert.Same(t, want, err)
	assert.Len(t, setter.calls, 1)
}

func TestRenameRobotOverHTTP(t *testing.T) {
	var calls atomic.Int32
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	renamer := NewRenamer(api.NewClient(api.NewEndpoints(srv.URL)))

	require.NoError(t, renamer.RenameRobot(context.Background(), robotA, "scout"))

	err := renamer.RenameRobot(context.Background(), "not-a-uuid", "scout")
	var validationErr *api.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, int32(1), calls.Load())

	status.Store(http.StatusConflict)
	err = renamer.RenameRobot(context.Background(), robotA, "scout")
	var transportErr *api.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusConflict, transportErr.Status)
	assert.False(t, errors.As(err, &validationErr))
}

func TestInvalidationKeysFor(t *testing.T) {
	want := []string{
		"/stats/online_robots",
		"/stats/robot/" + robotA,
		"/stats/robot/" + robotA + "/network",
	}

	first := InvalidationKeysFor(robotA)
	assert.Equal(t, want, first)

	// callers may mutate the result without affecting later calls
	first[0] = "mutated"
	assert.Equal(t, want, InvalidationKeysFor(robotA))
}

func TestIsUUIDv4(t *testing.T) {
	assert.True(t, IsUUIDv4(robotA))
	assert.True(t, IsUUIDv4(strings.ToUpper(robotA)))
	assert.False(t, IsUUIDv4("3f2b8c1e9a4d4e6f8b2a1c3d5e7f9a0b"))
	assert.False(t, IsUUIDv4("3f2b8c1e-9a4d-4e6f-cb2a-1c3d5e7f9a0b")) // reserved variant
}
