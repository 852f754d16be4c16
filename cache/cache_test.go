package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/drgolem/psglab/dsp"
	"github.com/drgolem/psglab/logging"
)

func openMemory(t *testing.T) *Cache {
	t.Helper()
	c, err := Open("", WithLogger(&logging.NoOpLogger{}))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func sample() *dsp.Spectrogram {
	return &dsp.Spectrogram{
		Freqs: []float64{0, 0.5, 1},
		Times: []float64{15, 45},
		Power: mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}),
	}
}

func TestPutGet(t *testing.T) {
	c := openMemory(t)
	p := Params{Path: "/data/night1.edf", Size: 1024, ModTime: time.Unix(1700000000, 0), Channel: 1, Nperseg: 3000, Concentration: 20, Window: "multitaper"}
	key := Key(p)

	_, err := c.Get(key)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Put(key, sample()))
	got, err := c.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, got.Freqs)
	assert.Equal(t, []float64{15, 45}, got.Times)
	assert.True(t, mat.Equal(sample().Power, got.Power))
}

func TestKeyDistinguishesParams(t *testing.T) {
	base := Params{Path: "/data/a.edf", Size: 10, ModTime: time.Unix(5, 0), Channel: 0, Nperseg: 3000, Concentration: 20}
	changed := []Params{base, base, base, base, base}
	changed[0].Size = 11
	changed[1].ModTime = time.Unix(6, 0)
	changed[2].Channel = 2
	changed[3].Nperseg = 1500
	changed[4].Concentration = 15

	for _, p := range changed {
		assert.NotEqual(t, string(Key(base)), string(Key(p)))
	}
	assert.Equal(t, Key(base), Key(base))
}

func TestKeysAndPurge(t *testing.T) {
	c := openMemory(t)
	for _, ch := range []int{0, 1} {
		require.NoError(t, c.Put(Key(Params{Path: "/x.edf", Channel: ch}), sample()))
	}

	keys, err := c.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, c.Purge())
	keys, err = c.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPutRejectsMismatchedAxes(t *testing.T) {
	c := openMemory(t)
	s := sample()
	s.Times = s.Times[:1]
	assert.Error(t, c.Put([]byte("spectr/bad"), s))
	assert.Error(t, c.Put([]byte("spectr/nil"), nil))
}

func TestCorruptEntry(t *testing.T) {
	_, err := spectrogramFromBytes([]byte{1, 0, 0, 0})
	assert.ErrorIs(t, err, ErrCorrupt)

	data, err := spectrogramToBytes(sample())
	require.NoError(t, err)
	_, err = spectrogramFromBytes(data[:len(data)-8])
	assert.ErrorIs(t, err, ErrCorrupt)
}
