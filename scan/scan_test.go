package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drgolem/psglab/edftest"
)

func TestRecordings(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "night2")
	hidden := filepath.Join(root, ".trash")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.MkdirAll(hidden, 0o755))

	eeg := edftest.Signal{Label: "EEG", Rate: 10, Gen: edftest.Ramp(50)}
	ann := edftest.Signal{Annotation: true, Rate: 2}
	edftest.Write(t, root, "a.edf", 45, eeg, ann)
	edftest.Write(t, nested, "b.edf", 90, eeg)
	edftest.Write(t, hidden, "c.edf", 10, eeg)
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.edf"), []byte("0       garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0o644))

	var calls []int
	got, err := Recordings(context.Background(), root, func(done int) {
		calls = append(calls, done)
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, []int{1, 2, 3}, calls)

	byName := map[string]RecordingInfo{}
	for _, r := range got {
		byName[filepath.Base(r.Path)] = r
	}
	a := byName["a.edf"]
	assert.Equal(t, []string{"EEG"}, a.Channels)
	assert.Equal(t, 2, a.EpochCount)
	assert.Equal(t, edftest.StartTime, a.StartTime.UTC())
	b := byName["b.edf"]
	assert.Equal(t, 3, b.EpochCount)
	assert.Equal(t, 90.0, b.Duration.Seconds())
}

func TestRecordingsMissingRoot(t *testing.T) {
	_, err := Recordings(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestRecordingsCanceled(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.edf", "b.edf"} {
		edftest.Write(t, root, name, 5, edftest.Signal{Label: "EEG", Rate: 10, Gen: edftest.Ramp(50)})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Recordings(ctx, root, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
