package social

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIdentityNormalises(t *testing.T) {
	require.Equal(t, Identity("AB12CD"), NewIdentity("0xab12cd"))
	require.Equal(t, Identity("AB12CD"), NewIdentity(" ab12CD "))
}

func TestIdentityShort(t *testing.T) {
	require.Equal(t, "ABCDEF", Identity("ABCDEF").Short())
	require.Equal(t, "0123AB...CDEF", Identity("0123ABFFFFFFFFFFCDEF").Short())
}

func TestPostKeyRoundTrip(t *testing.T) {
	key := NewPostKey("ABCD", 42)
	require.Equal(t, "ABCD/42", key.String())

	parsed, err := ParsePostKey(key.String())
	require.NoError(t, err)
	require.Equal(t, key, parsed)
}

func TestParsePostKeyInvalid(t *testing.T) {
	for _, input := range []string{"", "ABCD", "/1", "ABCD/x", "ABCD/-1"} {
		_, err := ParsePostKey(input)
		require.ErrorIs(t, err, ErrInvalidPostKey, input)
	}
}

func TestFollowEdgeRejectsSelf(t *testing.T) {
	_, err := NewFollowEdge("AA", "AA")
	require.ErrorIs(t, err, ErrSelfFollow)

	_, err = NewFollowEdge("", "AA")
	require.ErrorIs(t, err, ErrEmptyIdentity)

	edge, err := NewFollowEdge("AA", "BB")
	require.NoError(t, err)
	require.Equal(t, "AA->BB", edge.String())
}

func TestCodeName(t *testing.T) {
	require.Equal(t, "ok", CodeName(CodeOk))
	require.Equal(t, "already liked", CodeName(CodeAlreadyLiked))
	require.Equal(t, "unrecognised code", CodeName(5))
}
