package twin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture(t *testing.T) {
	env := newFakeEnv(1, 2, 3)
	l12 := env.addPair(1, 2, true)
	env.addPair(2, 3, true)
	env.hosts = append(env.hosts, &fakeHost{name: "twin_h1", mac: "AA:BB:CC:DD:EE:FF", ip: "10.0.0.1"})

	snap := baseSnapshot()
	st := Capture(env, snap)

	t.Run("switch handles mapped by dpid", func(t *testing.T) {
		require.Len(t, st.Switches, 3)
		assert.Equal(t, "twin_s2", st.Switches[2].Name())
	})

	t.Run("host keys normalized", func(t *testing.T) {
		_, ok := st.Hosts["aa:bb:cc:dd:ee:ff"]
		assert.True(t, ok)
	})

	t.Run("snapshot links resolved to handles", func(t *testing.T) {
		require.Len(t, st.Links, 1, "only the snapshot link is mapped")
		assert.Same(t, l12, st.Links[[2]uint64{1, 2}].(*fakeLink))
	})

	t.Run("link ports consumed", func(t *testing.T) {
		assert.True(t, st.LinkPorts[1][1])
		assert.True(t, st.LinkPorts[2][1])
		assert.False(t, st.LinkPorts[1][2])
	})
}

func TestNextHostName(t *testing.T) {
	env := newFakeEnv(1, 2)
	env.addPair(1, 2, true)
	env.hosts = append(env.hosts,
		&fakeHost{name: "twin_h1", mac: "00:00:00:00:00:01", ip: "10.0.0.1"},
		&fakeHost{name: "twin_h2", mac: "00:00:00:00:00:02", ip: "10.0.0.2"})
	st := Capture(env, baseSnapshot())

	assert.Equal(t, "twin_h3", st.NextHostName())
	assert.Equal(t, "twin_h4", st.NextHostName())
}

func TestAllocateIP(t *testing.T) {
	env := newFakeEnv(1, 2)
	env.addPair(1, 2, true)
	env.hosts = append(env.hosts,
		&fakeHost{name: "twin_h1", mac: "00:00:00:00:00:01", ip: "10.0.0.1"},
		&fakeHost{name: "twin_h2", mac: "00:00:00:00:00:03", ip: "10.0.0.3"})
	st := Capture(env, baseSnapshot())

	assert.Equal(t, "10.0.0.2/24", st.AllocateIP(), "skips used addresses")
	assert.Equal(t, "10.0.0.4/24", st.AllocateIP())
}

func TestStripPrefix(t *testing.T) {
	assert.Equal(t, "10.0.0.5", StripPrefix("10.0.0.5/24"))
	assert.Equal(t, "10.0.0.5", StripPrefix("10.0.0.5"))
}
