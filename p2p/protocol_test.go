package p2p

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitRecognizesEveryTag(t *testing.T) {
	cases := []struct {
		tag     Tag
		payload string
	}{
		{TagData, "hello world"},
		{TagHello, "127.0.0.1"},
		{TagJoin, "127.0.0.1"},
		{TagIntroduce, "127.0.0.1"},
		{TagOneBlock, `{"index":1}`},
		{TagBlockchainReq, "127.0.0.1"},
		{TagBlockchainReply, `[{"index":0}]`},
		{TagTransaction, `{"tx_hash":"abc"}`},
	}

	for _, c := range cases {
		raw := string(c.tag) + c.payload
		tag, payload, ok := Split(raw)
		require.True(t, ok, "tag %s", c.tag)
		require.Equal(t, c.tag, tag)
		require.Equal(t, c.payload, payload)
	}
}

func TestSplitRejectsUnknownTag(t *testing.T) {
	_, _, ok := Split("@NOPE{}")
	require.False(t, ok)
}

func TestSplitDoesNotConfuseBlockchainRequestAndReply(t *testing.T) {
	tag, payload, ok := Split("#BLOCKCHAIN[]")
	require.True(t, ok)
	require.Equal(t, TagBlockchainReply, tag)
	require.Equal(t, "[]", payload)
}
