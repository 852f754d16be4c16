package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drgolem/psglab/types"
)

func TestResolveChannel(t *testing.T) {
	hdr := types.Header{Signals: []types.SignalDescriptor{
		{Label: "EEG Fpz-Cz"},
		{Label: "EOG horizontal"},
		{Label: "EDF Annotations", Annotation: true},
	}}

	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"1", 1, false},
		{"eog horizontal", 1, false},
		{"EEG Fpz-Cz", 0, false},
		{"3", 0, true},
		{"-1", 0, true},
		{"EMG", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := resolveChannel(hdr, tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilenameWithoutExtension(t *testing.T) {
	assert.Equal(t, "/data/night1", filenameWithoutExtension("/data/night1.edf"))
	assert.Equal(t, "night", filenameWithoutExtension("night"))
}
