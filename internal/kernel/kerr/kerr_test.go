package kerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"kernelnerd/internal/kernel/expr"
)

type fakeEnv struct{ label string }

func (f fakeEnv) DescribeEnv() string { return f.label }

func TestErrorMessageIncludesEnvDescription(t *testing.T) {
	err := UnknownNameErr(fakeEnv{"gen-3, 12 objects"}, "foo.bar")
	assert.Contains(t, err.Error(), "foo.bar")
	assert.Contains(t, err.Error(), "gen-3, 12 objects")
	assert.Equal(t, "foo.bar", err.Name)
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	base := OccursCheckErr(nil, nil, expr.MkConst("?m"), expr.MkConst("m"))
	wrapped := fmt.Errorf("while assigning: %w", base)

	assert.True(t, Is(wrapped, OccursCheck))
	assert.False(t, Is(wrapped, FailedToUnify))
}

func TestUnwrapReachesWrappedError(t *testing.T) {
	inner := errors.New("boom")
	e := &Error{Kind: Interrupted, Message: "cancelled", Wrapped: inner}
	assert.Same(t, inner, errors.Unwrap(e))
}

func TestMaxDepthExceededCarriesDepth(t *testing.T) {
	err := MaxDepthExceededErr(nil, nil, 256)
	assert.Contains(t, err.Message, "256")
}
