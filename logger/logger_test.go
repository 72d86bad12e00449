package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressCountsConcurrentUpdates(t *testing.T) {
	p := NewProgress("test", nil)
	p.AddTotalFolders(8)
	p.AddTotalFiles(8 * 6)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(skip bool) {
			defer wg.Done()
			if skip {
				p.AddTotalFiles(-6)
			} else {
				for j := 0; j < 6; j++ {
					p.FileDone()
				}
			}
			p.FolderDone()
		}(i%4 == 0)
	}
	wg.Wait()
	p.Complete()

	assert.Equal(t, ProgressSnapshot{
		FilesDone:    36,
		FilesTotal:   36,
		FoldersDone:  8,
		FoldersTotal: 8,
	}, p.Snapshot())
}

func TestProgressLine(t *testing.T) {
	p := NewProgress("Cropping", nil)
	p.width = 10

	testCases := []struct {
		name string
		snap ProgressSnapshot
		want string
	}{
		{
			name: "empty",
			snap: ProgressSnapshot{},
			want: "Cropping [░░░░░░░░░░]   0% files 0/0 folders 0/0 ETA: 0s ",
		},
		{
			name: "half",
			snap: ProgressSnapshot{FilesDone: 3, FilesTotal: 6, FoldersTotal: 1},
			want: "Cropping [█████░░░░░]  50% files 3/6 folders 0/1 ETA: 4s ",
		},
		{
			name: "overshoot_clamped",
			snap: ProgressSnapshot{FilesDone: 9, FilesTotal: 6, FoldersDone: 1, FoldersTotal: 1},
			want: "Cropping [██████████] 100% files 6/6 folders 1/1 ETA: 0s ",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.line(tc.snap, 4*time.Second))
		})
	}
}

func TestProgressRendersAndCompletes(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress("Cropping", &buf)
	p.AddTotalFiles(2)
	p.FileDone()
	p.FileDone()

	p.Start(time.Hour)
	p.Complete()
	p.Complete()

	out := buf.String()
	assert.Contains(t, out, "files 2/2")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestTablePrint(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable([]string{"Metric", "Value"}, &buf)
	table.AddRow("Folders", "3")
	table.AddRow("Images written", "12", "ignored")
	require.Equal(t, 2, table.Len())

	table.Print()

	want := strings.Join([]string{
		"┌────────────────┬───────┐",
		"│ Metric         │ Value │",
		"├────────────────┼───────┤",
		"│ Folders        │ 3     │",
		"│ Images written │ 12    │",
		"└────────────────┴───────┘",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestRichHandlerJSON(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Output = &buf
	opts.EnableJSON = true
	opts.EnableColors = false
	opts.TimestampInJSON = false

	log := NewRichLogger(opts).With("folder", "demo").WithGroup("crop")
	log.Warn("decode failed", "index", 2, "err", errors.New("bad header"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, map[string]any{
		"level":      "WARN",
		"msg":        "decode failed",
		"folder":     "demo",
		"crop.index": float64(2),
		"crop.err":   "bad header",
	}, got)
}

func TestRichHandlerTextAttrs(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Output = &buf
	opts.EnableColors = false

	NewRichLogger(opts).Info("wrote archive", "folder", "demo", "entries", 4)

	line := buf.String()
	assert.Contains(t, line, "INFO  wrote archive folder=demo entries=4\n")
}

func TestConsoleLevelsAndWith(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Output = &buf
	opts.EnableColors = false
	opts.Level = slog.LevelWarn

	console := NewConsole(opts)
	assert.False(t, console.Interactive)

	folder := console.With("folder", "demo")
	folder.Info("hidden")
	folder.Warn("No images found in panorama folder %s", "demo")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "⚠ No images found in panorama folder demo folder=demo")
}
