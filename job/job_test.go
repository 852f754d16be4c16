package job

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drgolem/psglab/cache"
	"github.com/drgolem/psglab/display"
	"github.com/drgolem/psglab/dsp"
	"github.com/drgolem/psglab/edftest"
	"github.com/drgolem/psglab/logging"
)

func recording(t *testing.T) string {
	t.Helper()
	sine := func(i int) float64 {
		return 100*math.Sin(2*math.Pi*5*float64(i)/20) + float64(i%7)
	}
	return edftest.Write(t, t.TempDir(), "night.edf", 90,
		edftest.Signal{Label: "C3", Rate: 20, Gen: sine},
		edftest.Signal{Annotation: true, Rate: 4},
	)
}

func collect(ch <-chan Event) []Event {
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func quiet() Option {
	return WithLogger(&logging.NoOpLogger{})
}

func TestStartSpectrogramEvents(t *testing.T) {
	path := recording(t)

	events := collect(StartSpectrogram(context.Background(), Request{ID: 7, Path: path}, quiet()))
	require.Len(t, events, 91)

	for i, ev := range events[:90] {
		assert.Equal(t, uint64(7), ev.RequestID)
		assert.Equal(t, EventProgress, ev.Kind, "event %d", i)
		if i > 0 {
			assert.Greater(t, ev.Percent, events[i-1].Percent)
		}
	}
	assert.Equal(t, 100.0, events[89].Percent)

	done := events[90]
	require.Equal(t, EventDone, done.Kind, "%v", done.Err)
	require.NotNil(t, done.Result)
	assert.False(t, done.Result.Cached)
	assert.Equal(t, "C3", done.Result.Descriptor.Label)
	assert.Equal(t, []float64{15, 45, 75}, done.Result.Spectrogram.Times)

	rows, cols := done.Result.Image.Data.Dims()
	assert.Equal(t, 3, cols)
	assert.Equal(t, len(done.Result.Image.Freqs), rows)
	assert.Less(t, done.Result.Image.Range.Low, done.Result.Image.Range.High)
}

func TestStartSpectrogramFlatSegment(t *testing.T) {
	// second 30 s segment is pinned at the physical minimum
	gen := func(i int) float64 {
		if i >= 600 && i < 1200 {
			return -500
		}
		return 100*math.Sin(2*math.Pi*5*float64(i)/20) + float64(i%7)
	}
	path := edftest.Write(t, t.TempDir(), "flat.edf", 90,
		edftest.Signal{Label: "C3", Rate: 20, Gen: gen},
	)

	events := collect(StartSpectrogram(context.Background(), Request{Path: path}, quiet()))
	done := events[len(events)-1]
	require.Equal(t, EventDone, done.Kind, "%v", done.Err)

	img := done.Result.Image
	rows, cols := img.Data.Dims()
	require.Equal(t, 3, cols)
	for i := 0; i < rows; i++ {
		assert.True(t, math.IsInf(img.Data.At(i, 1), -1), "%g Hz", img.Freqs[i])
		assert.False(t, math.IsInf(img.Data.At(i, 0), 0), "%g Hz", img.Freqs[i])
	}
	assert.False(t, math.IsInf(img.Range.Low, 0))
	assert.False(t, math.IsInf(img.Range.High, 0))
	assert.Less(t, img.Range.Low, img.Range.High)
}

func TestStartSpectrogramAssignsID(t *testing.T) {
	path := recording(t)
	a := collect(StartSpectrogram(context.Background(), Request{Path: path, Window: dsp.WindowHann, Nperseg: 200}, quiet()))
	b := collect(StartSpectrogram(context.Background(), Request{Path: path, Window: dsp.WindowHann, Nperseg: 200}, quiet()))

	idA, idB := a[len(a)-1].RequestID, b[len(b)-1].RequestID
	assert.NotZero(t, idA)
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, EventDone, b[len(b)-1].Kind)
	assert.Len(t, b[len(b)-1].Result.Spectrogram.Times, 9)
}

func TestStartSpectrogramFailures(t *testing.T) {
	path := recording(t)
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		req  Request
	}{
		{"missing file", context.Background(), Request{Path: filepath.Join(t.TempDir(), "none.edf")}},
		{"annotation channel", context.Background(), Request{Path: path, Channel: 1}},
		{"channel out of range", context.Background(), Request{Path: path, Channel: 4}},
		{"segment too long", context.Background(), Request{Path: path, Nperseg: 5000}},
		{"empty band", context.Background(), Request{Path: path, Display: []display.Option{display.WithBand(40, 45)}}},
		{"canceled", canceled, Request{Path: path}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := collect(StartSpectrogram(tt.ctx, tt.req, quiet()))
			require.NotEmpty(t, events)
			last := events[len(events)-1]
			assert.Equal(t, EventFailed, last.Kind)
			assert.Error(t, last.Err)
			assert.Nil(t, last.Result)
			for _, ev := range events[:len(events)-1] {
				assert.Equal(t, EventProgress, ev.Kind)
			}
		})
	}

	events := collect(StartSpectrogram(canceled, Request{Path: path}, quiet()))
	assert.ErrorIs(t, events[len(events)-1].Err, context.Canceled)
}

func TestStartSpectrogramCached(t *testing.T) {
	path := recording(t)
	store, err := cache.Open("", cache.WithLogger(&logging.NoOpLogger{}))
	require.NoError(t, err)
	defer store.Close()

	req := Request{Path: path, Concentration: 15}
	first := collect(StartSpectrogram(context.Background(), req, quiet(), WithCache(store)))
	require.Equal(t, EventDone, first[len(first)-1].Kind)
	assert.False(t, first[len(first)-1].Result.Cached)

	second := collect(StartSpectrogram(context.Background(), req, quiet(), WithCache(store)))
	require.Len(t, second, 1)
	assert.Equal(t, EventDone, second[0].Kind)
	assert.True(t, second[0].Result.Cached)
	assert.Equal(t, first[len(first)-1].Result.Spectrogram.Freqs, second[0].Result.Spectrogram.Freqs)
	assert.Equal(t, first[len(first)-1].Result.Image.Range, second[0].Result.Image.Range)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestUnboundedKeepsOrder(t *testing.T) {
	in := make(chan Event)
	out := unbounded(in)

	for i := 0; i < 1000; i++ {
		in <- Event{Percent: float64(i)}
	}
	close(in)

	i := 0
	for ev := range out {
		assert.Equal(t, float64(i), ev.Percent)
		i++
	}
	assert.Equal(t, 1000, i)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "progress", EventProgress.String())
	assert.Equal(t, "done", EventDone.String())
	assert.Equal(t, "failed", EventFailed.String())
	assert.Equal(t, "EventKind(9)", EventKind(9).String())
}
