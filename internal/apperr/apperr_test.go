package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MessageIncludesOneBasedPiece(t *testing.T) {
	err := Service(1, 3, errors.New("status 500"))
	assert.Equal(t, "service error at piece 2/3: completion failed: status 500", err.Error())
}

func TestError_ConfigurationHasNoPiece(t *testing.T) {
	err := Configf("budget %d is not positive", -5)
	assert.Equal(t, "configuration error: budget -5 is not positive", err.Error())
	assert.Equal(t, NoPiece, err.Piece)
}

func TestKindOf_WrappedChain(t *testing.T) {
	base := Cancelled(2, 4, context.Canceled)
	wrapped := fmt.Errorf("run: %w", base)

	assert.Equal(t, KindCancelled, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindCancelled))
	assert.False(t, Is(wrapped, KindService))
	assert.True(t, errors.Is(wrapped, context.Canceled))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, Is(nil, KindConfiguration))
}
