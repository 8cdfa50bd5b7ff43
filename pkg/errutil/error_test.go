package errutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errSample = New(StatusConflict, "already done")

func TestSentinelMatchesAfterWrapping(t *testing.T) {
	wrapped := Wrap(errSample, errors.New("duplicate key"))
	require.ErrorIs(t, wrapped, errSample)
	require.Contains(t, wrapped.Error(), "duplicate key")

	outer := ValidationFailed("bad input", errSample)
	require.ErrorIs(t, outer, errSample)
	require.True(t, IsCode(outer, StatusValidationFailed))

	require.ErrorIs(t, fmt.Errorf("context: %w", errSample), errSample)
	require.NotErrorIs(t, New(StatusConflict, "other"), errSample)
}

func TestWrapIgnoresPlainErrors(t *testing.T) {
	plain := errors.New("boom")
	require.Same(t, plain, Wrap(plain, errors.New("cause")))
	require.Equal(t, errSample, Wrap(errSample, nil))
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		code CoreStatus
		http int
		grpc codes.Code
	}{
		{StatusValidationFailed, http.StatusBadRequest, codes.InvalidArgument},
		{StatusUnauthorized, http.StatusUnauthorized, codes.Unauthenticated},
		{StatusForbidden, http.StatusForbidden, codes.PermissionDenied},
		{StatusNotFound, http.StatusNotFound, codes.NotFound},
		{StatusConflict, http.StatusConflict, codes.AlreadyExists},
		{StatusUnprocessableEntity, http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{StatusInternal, http.StatusInternalServerError, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			require.Equal(t, tt.http, tt.code.HTTPStatus())
			require.Equal(t, tt.grpc, tt.code.GRPCCode())
		})
	}
}

func TestToGRPCError(t *testing.T) {
	require.NoError(t, ToGRPCError(nil))

	st, ok := status.FromError(ToGRPCError(NotFound("wallet not found", nil)))
	require.True(t, ok)
	require.Equal(t, codes.NotFound, st.Code())
	require.Equal(t, "wallet not found", st.Message())

	st, _ = status.FromError(ToGRPCError(context.DeadlineExceeded))
	require.Equal(t, codes.DeadlineExceeded, st.Code())

	st, _ = status.FromError(ToGRPCError(errors.New("boom")))
	require.Equal(t, codes.Internal, st.Code())
}
