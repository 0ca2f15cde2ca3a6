package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindConstructors(t *testing.T) {
	err := InvalidInput("volatility %v is not positive", -0.2)
	assert.True(t, IsKind(err, KindInvalidInput))
	assert.Contains(t, err.Error(), "volatility -0.2")

	assert.True(t, IsKind(InvalidTopology("self-loop"), KindInvalidTopology))
	assert.True(t, IsKind(FeedUnavailable("down"), KindFeedUnavailable))
	assert.False(t, IsKind(fmt.Errorf("plain"), KindInvalidInput))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := FeedUnavailable("market snapshot unavailable").Wrap(cause)

	assert.True(t, IsKind(err, KindFeedUnavailable))
	assert.Equal(t, cause, Unwrap(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsMatchesByKind(t *testing.T) {
	err := InvalidInput("bad spot")
	assert.True(t, Is(err, InvalidInput("different message")))
	assert.False(t, Is(err, InvalidTopology("bad edge")))
}

func TestExplainCopies(t *testing.T) {
	base := NewWithKind(KindNotFound, "original")
	detailed := base.Explain("entity %s not in universe", "nikkei")

	assert.Equal(t, "original", base.Message)
	assert.Contains(t, detailed.Message, "nikkei")
	assert.Equal(t, KindNotFound, detailed.Kind)
}

func TestProblemMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		title  string
	}{
		{InvalidInput("bad"), http.StatusBadRequest, "Invalid Input"},
		{InvalidTopology("bad"), http.StatusUnprocessableEntity, "Invalid Topology"},
		{FeedUnavailable("down"), http.StatusServiceUnavailable, "Feed Unavailable"},
		{NewWithKind(KindNotFound, "missing"), http.StatusNotFound, "Not Found"},
		{NewWithKind(KindConvergenceNotReached, "stuck"), http.StatusUnprocessableEntity, "Convergence Not Reached"},
		{fmt.Errorf("plain"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tc := range cases {
		p := Problem(tc.err)
		require.NotNil(t, p)
		assert.Equal(t, tc.status, p.Status)
		assert.Equal(t, tc.title, p.Title)
		assert.Contains(t, p.Type, "/problems/")
	}
}
