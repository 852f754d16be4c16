package scan

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/karrick/godirwalk"
	"golang.org/x/sync/errgroup"

	"github.com/drgolem/psglab/decoders"
	"github.com/drgolem/psglab/epoch"
	"github.com/drgolem/psglab/logging"
	"github.com/drgolem/psglab/types"
)

const (
	MaxConcurrency = 8
)

type RecordingInfo struct {
	Path       string
	StartTime  time.Time
	Duration   time.Duration
	Channels   []string
	EpochCount int
}

// RecordingWalker sends the path of every recording below root.
// Hidden directories are skipped. The channel is closed when the walk
// ends; the walk error is reported through wgProcess.
func RecordingWalker(ctx context.Context, root string, wgProcess *errgroup.Group) <-chan string {
	filesChan := make(chan string, MaxConcurrency)

	wgProcess.Go(func() error {
		defer close(filesChan)
		return godirwalk.Walk(root, &godirwalk.Options{
			Callback: func(osPathname string, de *godirwalk.Dirent) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if de.IsDir() {
					if osPathname != root && strings.HasPrefix(de.Name(), ".") {
						return filepath.SkipDir
					}
					return nil
				}
				if !de.IsRegular() || !types.IsRecording(filepath.Ext(de.Name())) {
					return nil
				}
				select {
				case filesChan <- osPathname:
				case <-ctx.Done():
					return ctx.Err()
				}
				return nil
			},
			Unsorted: true,
		})
	})

	return filesChan
}

// Recordings reads the header of every recording below root, sorted by
// start time. Files that fail to decode are logged and left out.
// progress, if not nil, is called with the number of files read so far.
func Recordings(ctx context.Context, root string, progress func(done int)) ([]RecordingInfo, error) {
	wgProcess, gctx := errgroup.WithContext(ctx)
	filesChan := RecordingWalker(gctx, root, wgProcess)

	var mx sync.Mutex
	var out []RecordingInfo
	done := 0

	wgProcess.Go(func() error {
		wgSubProcess, ctxSub := errgroup.WithContext(gctx)
		wgSubProcess.SetLimit(MaxConcurrency)
	LOOP:
		for file := range filesChan {
			file := file
			select {
			case <-ctxSub.Done():
				break LOOP
			default:
			}

			wgSubProcess.Go(func() error {
				info, err := readInfo(file)

				mx.Lock()
				defer mx.Unlock()
				done++
				if progress != nil {
					progress(done)
				}
				if err != nil {
					logging.Warn("skip recording", logging.Fields{"path": file, "error": err.Error()})
					return nil
				}
				out = append(out, info)
				return nil
			})
		}
		return wgSubProcess.Wait()
	})

	if err := wgProcess.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b RecordingInfo) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return out, nil
}

func readInfo(fileName string) (RecordingInfo, error) {
	dec, err := decoders.OpenEDF(fileName)
	if err != nil {
		return RecordingInfo{}, err
	}
	defer dec.Close()

	hdr := dec.Header()
	info := RecordingInfo{
		Path:      fileName,
		StartTime: hdr.StartTime,
		Duration:  hdr.Duration(),
	}
	for _, ch := range hdr.DataSignals() {
		info.Channels = append(info.Channels, hdr.Signals[ch].Label)
	}

	reader, err := epoch.NewReader(dec, epoch.WithLogger(&logging.NoOpLogger{}))
	if err != nil {
		return RecordingInfo{}, err
	}
	info.EpochCount = reader.EpochCount()
	return info, nil
}
