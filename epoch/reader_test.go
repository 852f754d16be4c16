package epoch_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drgolem/psglab/decoders"
	"github.com/drgolem/psglab/edftest"
	"github.com/drgolem/psglab/epoch"
	"github.com/drgolem/psglab/types"
)

const (
	eegRate = 10
	eogRate = 5
)

// sixtyEpochs is 30 minutes at 10 and 5 Hz plus an annotation channel.
func sixtyEpochs(t *testing.T) *decoders.EDF {
	t.Helper()
	path := edftest.Write(t, t.TempDir(), "night.edf", 60*30,
		edftest.Signal{Label: "EEG", Rate: eegRate, Gen: edftest.Ramp(400)},
		edftest.Signal{Label: "EOG", Rate: eogRate, Gen: edftest.Ramp(100)},
		edftest.Signal{Annotation: true, Rate: 2},
	)
	dec, err := decoders.OpenEDF(path)
	require.NoError(t, err)
	t.Cleanup(func() { dec.Close() })
	return dec
}

func TestStartAlignAllPadding(t *testing.T) {
	r, err := epoch.NewReader(sixtyEpochs(t), epoch.WithStartAlignOffset(30000))
	require.NoError(t, err)

	require.NoError(t, r.Seek(0))
	require.NoError(t, r.ReadEpochs(1))

	win := r.Window()
	assert.Equal(t, 300, win.Len(0))
	assert.Equal(t, 300, win.PaddingCount(0))
	assert.Equal(t, 150, win.PaddingCount(1))
	assert.Empty(t, win.Channels[2])
	for _, c := range win.Channels[0] {
		assert.True(t, c.IsPadding())
	}

	assert.Equal(t, 1, r.StartAlignEpochCount())
	assert.Equal(t, 61, r.EpochCount())
	assert.Equal(t, 0, r.WindowStartEpoch())
	assert.Equal(t, 0, r.WindowEndEpoch())

	// the next epoch is the first real one
	require.NoError(t, r.ReadEpochs(1))
	assert.Equal(t, 0, r.Window().PaddingCount(0))
	assert.InDelta(t, 0.0, r.Window().Samples(0)[0], 0.02)
}

func TestAlignmentInvariant(t *testing.T) {
	tests := []struct {
		name   string
		seek   int64
		change func(r *epoch.Reader) error
	}{
		{"offset", 45000, func(r *epoch.Reader) error { return r.SetOffset(1500) }},
		{"negative offset", 45000, func(r *epoch.Reader) error { return r.SetOffset(-2500) }},
		{"start align", 90000, func(r *epoch.Reader) error { return r.SetStartAlignOffset(60000) }},
		{"into padding", 10000, func(r *epoch.Reader) error { return r.SetStartAlignOffset(30000) }},
		{"both", 123456, func(r *epoch.Reader) error {
			if err := r.SetStartAlignOffset(30000); err != nil {
				return err
			}
			return r.SetOffset(700)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := epoch.NewReader(sixtyEpochs(t))
			require.NoError(t, err)
			require.NoError(t, r.Seek(tt.seek))
			before := r.Tell()
			require.NoError(t, tt.change(r))
			assert.Equal(t, before, r.Tell())
		})
	}
}

func TestSeekTellRoundTrip(t *testing.T) {
	r, err := epoch.NewReader(sixtyEpochs(t), epoch.WithOffset(250), epoch.WithStartAlignOffset(30000))
	require.NoError(t, err)

	for _, target := range []int64{0, 1, 999, 30000, 30250, 45500, 1799000} {
		require.NoError(t, r.Seek(target))
		assert.Equal(t, target, r.Tell(), "target %d", target)
	}
}

func TestSeekPastEnd(t *testing.T) {
	r, err := epoch.NewReader(sixtyEpochs(t))
	require.NoError(t, err)
	assert.ErrorIs(t, r.Seek(1800001), decoders.ErrSeekOutOfRange)
}

func TestPaddingCompleteness(t *testing.T) {
	tests := []struct {
		name    string
		seek    int64
		count   int
		leadEEG int
		tailEEG int
	}{
		{"middle", 60000, 3, 0, 0},
		{"before start", -45000, 2, 450, 0},
		{"far before start", -120000, 2, 600, 0},
		{"end", 59 * 30000, 3, 0, 600},
		{"past end", 1800000, 1, 0, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := epoch.NewReader(sixtyEpochs(t))
			require.NoError(t, err)
			require.NoError(t, r.Seek(tt.seek))
			require.NoError(t, r.ReadEpochs(tt.count))

			win := r.Window()
			assert.Equal(t, tt.count*300, win.Len(0))
			assert.Equal(t, tt.count*150, win.Len(1))
			assert.Equal(t, tt.leadEEG+tt.tailEEG, win.PaddingCount(0))

			samples := win.Samples(0)
			for i := 0; i < tt.leadEEG; i++ {
				require.True(t, math.IsNaN(samples[i]), "lead sample %d", i)
			}
			for i := len(samples) - tt.tailEEG; i < len(samples); i++ {
				require.True(t, math.IsNaN(samples[i]), "tail sample %d", i)
			}
			realN := len(samples) - tt.leadEEG - tt.tailEEG
			for i := tt.leadEEG; i < tt.leadEEG+realN; i++ {
				require.False(t, math.IsNaN(samples[i]), "real sample %d", i)
			}
		})
	}
}

func TestReadEpochsData(t *testing.T) {
	r, err := epoch.NewReader(sixtyEpochs(t))
	require.NoError(t, err)

	require.NoError(t, r.Seek(30500))
	require.NoError(t, r.ReadEpochs(1))

	chunks := r.Window().Channels[0]
	require.Len(t, chunks, 1)
	assert.Equal(t, 30.5, chunks[0].Offset)
	// sample 305 of a 400 period ramp
	assert.InDelta(t, 305.0, chunks[0].Samples[0], 0.02)
	assert.Equal(t, int64(60500), r.Tell())

	// reads continue where the last one stopped
	require.NoError(t, r.ReadEpochs(1))
	assert.InDelta(t, float64(605%400), r.Window().Samples(0)[0], 0.02)
}

func TestLeadPaddingWithOffset(t *testing.T) {
	r, err := epoch.NewReader(sixtyEpochs(t), epoch.WithOffset(1000))
	require.NoError(t, err)
	require.NoError(t, r.ReadEpochs(1))

	win := r.Window()
	assert.Equal(t, 10, win.PaddingCount(0))
	assert.Equal(t, 5, win.PaddingCount(1))
	require.Len(t, win.Channels[0], 2)
	assert.True(t, win.Channels[0][0].IsPadding())
	assert.Equal(t, 0.0, win.Channels[0][1].Offset)
	assert.InDelta(t, 0.0, win.Channels[0][1].Samples[0], 0.02)
}

func TestWindowEpochs(t *testing.T) {
	r, err := epoch.NewReader(sixtyEpochs(t))
	require.NoError(t, err)

	require.NoError(t, r.Seek(60000))
	require.NoError(t, r.ReadEpochs(3))
	assert.Equal(t, 2, r.WindowStartEpoch())
	assert.Equal(t, 4, r.WindowEndEpoch())
	assert.Equal(t, 3, r.CurrentEpoch())
	assert.Equal(t, 60, r.EpochCount())
	assert.Equal(t, 0, r.StartAlignEpochCount())
}

func TestChartSignals(t *testing.T) {
	r, err := epoch.NewReader(sixtyEpochs(t), epoch.WithStartAlignOffset(15000))
	require.NoError(t, err)
	require.NoError(t, r.ReadEpochs(1))

	charts := r.ChartSignals()
	require.Len(t, charts, 2)
	assert.Equal(t, "EEG", charts[0].Label)
	assert.Equal(t, "uV", charts[0].Unit)
	assert.Equal(t, -500.0, charts[0].PhysicalMin)
	require.Len(t, charts[0].Points, 300)
	assert.Equal(t, 0.0, charts[0].Points[0].X)
	assert.InDelta(t, 0.1, charts[0].Points[1].X, 1e-9)
	assert.True(t, math.IsNaN(charts[0].Points[149].Y))
	assert.InDelta(t, 0.0, charts[0].Points[150].Y, 0.02)
	assert.InDelta(t, 15.0, charts[0].Points[150].X, 1e-9)
}

type annotationsOnly struct{}

func (annotationsOnly) Header() types.Header {
	return types.Header{
		RecordDuration: time.Second,
		RecordCount:    1,
		Signals:        []types.SignalDescriptor{{Label: "EDF Annotations", Annotation: true}},
	}
}
func (annotationsOnly) SeekRecord(int) error                 { return nil }
func (annotationsOnly) SkipMillis(int64) error               { return nil }
func (annotationsOnly) ReadMillis(int64) ([][]float64, error) { return nil, nil }
func (annotationsOnly) ReadRecord() ([][]float64, error)      { return nil, nil }
func (annotationsOnly) Close() error                          { return nil }

func TestNoDataChannels(t *testing.T) {
	_, err := epoch.NewReader(annotationsOnly{})
	assert.ErrorIs(t, err, epoch.ErrNoDataChannels)
}

func TestInvalidCount(t *testing.T) {
	r, err := epoch.NewReader(sixtyEpochs(t))
	require.NoError(t, err)
	assert.Error(t, r.ReadEpochs(0))
}
