package fingerprint

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ururulab/imageingest/internal/domain"
)

func TestSumDeterministic(t *testing.T) {
	a, err := Sum(bytes.NewReader([]byte("same payload")))
	require.NoError(t, err)
	b, err := Sum(bytes.NewReader([]byte("same payload")))
	require.NoError(t, err)

	require.Equal(t, a, b)
	require.Len(t, a, 64)
}

func TestSumDiffersForDifferentPayloads(t *testing.T) {
	a, err := Sum(strings.NewReader("payload one"))
	require.NoError(t, err)
	b, err := Sum(strings.NewReader("payload two"))
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("boom")
}

func TestSumUnreadablePayload(t *testing.T) {
	_, err := Sum(failingReader{})
	require.ErrorIs(t, err, domain.ErrPayloadUnreadable)
}
