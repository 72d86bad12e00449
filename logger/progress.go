package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Progress counts processed files and folders across concurrent workers.
// Counters are updated atomically; a single renderer goroutine started by
// Start redraws the bar from a snapshot at a fixed interval.
type Progress struct {
	startTime time.Time
	out       io.Writer
	label     string
	width     int

	filesTotal   atomic.Int64
	filesDone    atomic.Int64
	foldersTotal atomic.Int64
	foldersDone  atomic.Int64

	mu       sync.Mutex
	stop     chan struct{}
	stopped  chan struct{}
	complete bool
}

type ProgressSnapshot struct {
	FilesDone    int64
	FilesTotal   int64
	FoldersDone  int64
	FoldersTotal int64
}

// NewProgress returns a tracker that renders to out. A nil out keeps the
// counters but draws nothing.
func NewProgress(label string, out io.Writer) *Progress {
	return &Progress{
		startTime: time.Now(),
		out:       out,
		label:     label,
		width:     40,
	}
}

func (p *Progress) AddTotalFiles(n int64)   { p.filesTotal.Add(n) }
func (p *Progress) AddTotalFolders(n int64) { p.foldersTotal.Add(n) }
func (p *Progress) FileDone()               { p.filesDone.Add(1) }
func (p *Progress) FolderDone()             { p.foldersDone.Add(1) }

func (p *Progress) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		FilesDone:    p.filesDone.Load(),
		FilesTotal:   p.filesTotal.Load(),
		FoldersDone:  p.foldersDone.Load(),
		FoldersTotal: p.foldersTotal.Load(),
	}
}

// Start launches the renderer. Calling it more than once has no effect.
func (p *Progress) Start(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.out == nil || p.stop != nil || p.complete {
		return
	}
	p.stop = make(chan struct{})
	p.stopped = make(chan struct{})

	go func() {
		defer close(p.stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.mu.Lock()
				p.render()
				p.mu.Unlock()
			}
		}
	}()
}

// Complete stops the renderer and draws the final state once.
func (p *Progress) Complete() {
	p.mu.Lock()
	if p.complete {
		p.mu.Unlock()
		return
	}
	stop, stopped := p.stop, p.stopped
	p.mu.Unlock()

	if stop != nil {
		close(stop)
		<-stopped
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.render()
	p.complete = true
	if p.out != nil {
		fmt.Fprintln(p.out)
	}
}

func (p *Progress) render() {
	if p.complete || p.out == nil {
		return
	}
	fmt.Fprint(p.out, "\r"+p.line(p.Snapshot(), time.Since(p.startTime)))
}

func (p *Progress) line(s ProgressSnapshot, elapsed time.Duration) string {
	total := max(s.FilesTotal, 0)
	current := min(s.FilesDone, total)

	var ratio float64
	if total > 0 {
		ratio = float64(current) / float64(total)
	}
	filled := int(float64(p.width) * ratio)

	var eta time.Duration
	if current > 0 {
		eta = time.Duration(float64(elapsed) * float64(total-current) / float64(current))
	}

	return fmt.Sprintf("%s [%s%s] %3.0f%% files %d/%d folders %d/%d ETA: %s ",
		p.label,
		strings.Repeat("█", filled),
		strings.Repeat("░", p.width-filled),
		ratio*100,
		current,
		total,
		s.FoldersDone,
		s.FoldersTotal,
		formatDuration(eta),
	)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
