package topo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
	"switches": {
		"1": {"dpid": 1, "ports": [2, 1]},
		"2": {"dpid": "2", "ports": [1, 2]}
	},
	"links": [
		{"src_dpid": 1, "src_port": 1, "dst_dpid": 2, "dst_port": 1},
		{"src_dpid": 2, "src_port": 1, "dst_dpid": 1, "dst_port": 1}
	],
	"hosts": {
		"AA:BB:CC:DD:EE:FF": {"mac": "AA:BB:CC:DD:EE:FF", "ipv4": "10.0.0.1", "ipv6": null, "port": 2, "dpid": 1}
	},
	"version": 3
}`

func TestDecode(t *testing.T) {
	t.Run("full payload", func(t *testing.T) {
		snap, err := Decode([]byte(sampleJSON))
		require.NoError(t, err)

		assert.Equal(t, uint64(3), snap.Version)
		require.Len(t, snap.Switches, 2)
		assert.Equal(t, []int{1, 2}, snap.Switches[1].Ports)

		// Both directional reports collapse into one canonical link.
		require.Len(t, snap.Links, 1)

		host, ok := snap.Hosts["aa:bb:cc:dd:ee:ff"]
		require.True(t, ok, "MAC keys must be normalized to lower case")
		assert.Equal(t, "10.0.0.1", host.IPv4)
		assert.Empty(t, host.IPv6)
		assert.Equal(t, uint64(1), host.DPID)
	})

	t.Run("string and hex dpids normalize", func(t *testing.T) {
		snap, err := Decode([]byte(`{
			"switches": {"a": {"dpid": "0x0a", "ports": [1]}},
			"links": [], "hosts": {}, "version": 1
		}`))
		require.NoError(t, err)
		_, ok := snap.Switches[10]
		assert.True(t, ok)
	})

	t.Run("missing collection key rejected", func(t *testing.T) {
		_, err := Decode([]byte(`{"switches": {}, "links": []}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("non-JSON rejected", func(t *testing.T) {
		_, err := Decode([]byte(`not json`))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("missing version defaults to zero", func(t *testing.T) {
		snap, err := Decode([]byte(`{"switches": {}, "links": [], "hosts": {}}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(0), snap.Version)
	})

	t.Run("None sentinel treated as absent address", func(t *testing.T) {
		snap, err := Decode([]byte(`{
			"switches": {}, "links": [], "hosts": {
				"00:00:00:00:00:01": {"mac": "00:00:00:00:00:01", "ipv4": "None", "ipv6": "None", "port": 1, "dpid": 1}
			}
		}`))
		require.NoError(t, err)
		assert.Empty(t, snap.Hosts["00:00:00:00:00:01"].IPv4)
	})
}

func TestValidate(t *testing.T) {
	t.Run("switches and links required non-empty", func(t *testing.T) {
		snap, err := Decode([]byte(`{"switches": {}, "links": [], "hosts": {}}`))
		require.NoError(t, err)
		assert.ErrorIs(t, snap.Validate(), ErrMalformed)
	})

	t.Run("empty links rejected despite switches", func(t *testing.T) {
		snap, err := Decode([]byte(`{
			"switches": {"1": {"dpid": 1, "ports": [1]}},
			"links": [], "hosts": {}, "version": 1
		}`))
		require.NoError(t, err)
		assert.ErrorIs(t, snap.Validate(), ErrMalformed)
	})

	t.Run("empty hosts accepted", func(t *testing.T) {
		snap, err := Decode([]byte(`{
			"switches": {"1": {"dpid": 1, "ports": [1]}, "2": {"dpid": 2, "ports": [1]}},
			"links": [{"src_dpid": 1, "src_port": 1, "dst_dpid": 2, "dst_port": 1}],
			"hosts": {}, "version": 1
		}`))
		require.NoError(t, err)
		assert.NoError(t, snap.Validate())
	})
}
