package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	req := Request{Op: OpSet, Key: "k", Value: "v"}
	require.NoError(t, WriteRequest(&buf, req))

	got, err := ReadRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, req, got)

	resp := Response{Status: StatusOK, Value: "v", Found: true}
	require.NoError(t, WriteResponse(&buf, resp))

	gotResp, err := ReadResponse(&buf)
	require.NoError(t, err)
	require.Equal(t, resp, gotResp)
}

func TestReadMessageOnEmptyStreamIsEOF(t *testing.T) {
	_, err := ReadRequest(&bytes.Buffer{})
	require.ErrorIs(t, err, io.EOF)
}

func TestReadMessageRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	var out Request
	err := ReadMessage(&buf, &out)
	require.Error(t, err)
}

func TestTwoMessagesInSequenceDoNotInterfere(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, Request{Op: OpGet, Key: "a"}))
	require.NoError(t, WriteRequest(&buf, Request{Op: OpGet, Key: "b"}))

	first, err := ReadRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, "a", first.Key)

	second, err := ReadRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, "b", second.Key)
}
