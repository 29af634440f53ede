package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrRoomNotFound, CodeRoomNotFound},
		{ErrNotHost, CodeNotHost},
		{fmt.Errorf("%w: reveal vote: boom", ErrComputationFailed), CodeComputationFailed},
		{ErrPlayerNotFound, CodeNotInRoom},
		{errors.New("boom"), CodeInternalError},
	}

	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
