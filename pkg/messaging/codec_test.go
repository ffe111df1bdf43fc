package messaging_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arenaoj/judge/pkg/messaging"
)

func TestPayloadRoundTrip(t *testing.T) {
	payload := []byte("print('Hello, World!')\n")

	plain := messaging.EncodePayload(payload, false)
	got, err := messaging.DecodePayload(plain)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	compressed := messaging.EncodePayload(payload, true)
	require.True(t, strings.HasPrefix(compressed, "zstd:"))
	got, err = messaging.DecodePayload(compressed)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDecodePayloadMalformed(t *testing.T) {
	_, err := messaging.DecodePayload("!!! not base64 !!!")
	require.Error(t, err)

	// valid base64 that is not a zstd frame
	_, err = messaging.DecodePayload("zstd:aGVsbG8=")
	require.Error(t, err)
}

func TestSubmissionMessageRoundTrip(t *testing.T) {
	msg := messaging.SubmissionMessage{
		SubmissionID: 42,
		Language:     "PYTHON",
		Code:         messaging.EncodePayload([]byte("print(1)"), false),
		TimeLimit:    2.0,
		MemoryLimit:  128,
		TestCases: []messaging.TestCaseMessage{
			{ID: "a", Input: messaging.EncodePayload([]byte("1\n"), false), ExpectedOutput: messaging.EncodePayload([]byte("1"), false)},
			{ID: "b", Input: messaging.EncodePayload([]byte("2\n"), true), ExpectedOutput: messaging.EncodePayload([]byte("2"), false)},
		},
	}

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var got messaging.SubmissionMessage
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, msg, got)

	input, err := messaging.DecodePayload(got.TestCases[1].Input)
	require.NoError(t, err)
	require.Equal(t, []byte("2\n"), input)
}
