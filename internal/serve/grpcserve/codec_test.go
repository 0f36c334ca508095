package grpcserve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	req := PredictRequest{Inputs: []string{"hello"}, Metadata: map[string]string{"a": "b"}}
	data, err := c.Marshal(&req)
	require.NoError(t, err)

	var out PredictRequest
	require.NoError(t, c.Unmarshal(data, &out))
	require.Equal(t, req.Inputs, out.Inputs)
	require.Equal(t, req.Metadata, out.Metadata)
}

func TestJSONCodecName(t *testing.T) {
	require.Equal(t, "json", jsonCodec{}.Name())
}
