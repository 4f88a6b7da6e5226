package networkdetect

import (
	"errors"
	"testing"
	"time"

	"github.com/egaotan/solana-token2022/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostOf(t *testing.T) {
	host, err := hostOf("https://api.mainnet-beta.solana.com")
	require.NoError(t, err)
	assert.Equal(t, "api.mainnet-beta.solana.com", host)

	host, err = hostOf("http://10.0.0.7:8899")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", host)

	_, err = hostOf("localhost")
	assert.Error(t, err)
}

func TestFastest(t *testing.T) {
	config.LogPath = t.TempDir() + "/"
	nodes := []*config.Node{
		{Rpc: "http://slow:8899"},
		{Rpc: "http://down:8899"},
		{Rpc: "http://fast:8899"},
		{Rpc: "http://tie:8899"},
	}
	rtts := map[string]time.Duration{
		"slow": 90 * time.Millisecond,
		"fast": 10 * time.Millisecond,
		"tie":  90 * time.Millisecond,
	}
	probe := func(host string) (time.Duration, error) {
		rtt, ok := rtts[host]
		if !ok {
			return 0, errors.New("timeout")
		}
		return rtt, nil
	}

	ordered, err := Fastest(nodes, probe)
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, "http://fast:8899", ordered[0].Rpc)
	assert.Equal(t, "http://slow:8899", ordered[1].Rpc)
	assert.Equal(t, "http://tie:8899", ordered[2].Rpc)

	_, err = Fastest(nodes[1:2], probe)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestNetworkDetector_Window(t *testing.T) {
	config.LogPath = t.TempDir() + "/"
	nd, err := NewNetworkDetector(&config.Node{Rpc: "http://node:8899"}, nil, nil)
	require.NoError(t, err)
	nd.window = 2

	assert.Equal(t, time.Duration(0), nd.Average())
	assert.Equal(t, 10*time.Millisecond, nd.record(10*time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, nd.record(30*time.Millisecond))
	assert.Equal(t, 40*time.Millisecond, nd.record(50*time.Millisecond))
}
