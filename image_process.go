package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"panopack/crop"
	"panopack/logger"
	"panopack/mcpack"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Faces is the cube-map order assigned to the first six sorted source images.
var Faces = [...]string{"front", "right", "back", "left", "top", "bottom"}

const (
	inputDirName       = "input"
	outputDirName      = "output"
	namedOutputDirName = "named_output"
	manifestFileName   = mcpack.ManifestName
	iconFileName       = mcpack.IconName

	// Every folder is budgeted six files of progress until its input is listed.
	filesPerFolder = int64(len(Faces))

	progressInterval = 100 * time.Millisecond
)

var (
	ErrNoPanoramas   = errors.New("no panoramas found")
	ErrFoldersFailed = errors.New("panorama folders failed")
)

type Processor struct {
	Console     *logger.Console
	CropOptions crop.Options
	ArchiveExt  string
	NumWorkers  int

	changeTime func(os.FileInfo) time.Time

	slotsOnce sync.Once
	slots     *semaphore.Weighted
}

type FolderResult struct {
	Name    string
	Images  int
	Named   int
	Archive string
	Skipped bool
}

type BatchStats struct {
	mu               sync.Mutex
	TotalFolders     int
	ProcessedFolders int
	SkippedFolders   int
	FailedFolders    int
	ImagesWritten    int
	NamedWritten     int
	Archives         int
	Failures         map[string]error
}

type sourceImage struct {
	name    string
	path    string
	changed time.Time
}

func NewProcessor(cfg *Config, console *logger.Console) *Processor {
	return &Processor{
		Console:     console,
		CropOptions: cfg.GetCropOptions(),
		ArchiveExt:  cfg.ArchiveExt,
		NumWorkers:  cfg.Workers,
		changeTime:  statusChangeTime,
	}
}

// cropSlots bounds decode and encode work across every folder of the batch,
// so at most NumWorkers images are held in memory at once.
func (p *Processor) cropSlots() *semaphore.Weighted {
	p.slotsOnce.Do(func() {
		p.slots = semaphore.NewWeighted(int64(max(p.NumWorkers, 1)))
	})
	return p.slots
}

// ArchiveName is the file name of the pack written for a panorama folder.
func (p *Processor) ArchiveName(folder string) string {
	return folder + "Panorama." + p.ArchiveExt
}

// ProcessRoot processes every panorama folder under root concurrently. A
// failing folder does not stop its siblings; the returned error wraps
// ErrFoldersFailed when at least one folder failed.
func (p *Processor) ProcessRoot(ctx context.Context, root string) (*BatchStats, error) {
	if err := p.ensureRoot(root); err != nil {
		return nil, err
	}

	folders, err := DiscoverFolders(root)
	if err != nil {
		return nil, err
	}

	p.Console.Info("Processing %d panorama folders in %s (workers: %d)", len(folders), root, p.NumWorkers)
	timer := p.Console.StartTimer("Panorama processing")

	stats := &BatchStats{
		TotalFolders: len(folders),
		Failures:     make(map[string]error),
	}

	progress := p.Console.NewProgress("Cropping panoramas")
	progress.AddTotalFolders(int64(len(folders)))
	progress.AddTotalFiles(filesPerFolder * int64(len(folders)))
	progress.Start(progressInterval)

	p.processFoldersParallel(ctx, root, folders, stats, progress)

	progress.Complete()
	duration := timer.End()
	p.displayResults(stats, duration)

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("processing interrupted: %w", err)
	}
	if stats.FailedFolders > 0 {
		return stats, fmt.Errorf("%w: %d of %d", ErrFoldersFailed, stats.FailedFolders, stats.TotalFolders)
	}
	return stats, nil
}

func (p *Processor) ensureRoot(root string) error {
	_, err := os.Stat(root)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("path validation error: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating panoramas directory: %w", err)
	}
	p.Console.Info("Created panoramas directory %s", root)
	return nil
}

// DiscoverFolders lists the immediate subdirectories of root by name.
func DiscoverFolders(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("listing panoramas directory: %w", err)
	}

	var folders []string
	for _, e := range entries {
		if e.IsDir() {
			folders = append(folders, e.Name())
		}
	}
	if len(folders) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPanoramas, root)
	}
	return folders, nil
}

func (p *Processor) processFoldersParallel(ctx context.Context, root string, folders []string,
	stats *BatchStats, progress *logger.Progress) {
	numWorkers := min(max(p.NumWorkers, 1), len(folders))
	jobs := make(chan string, len(folders))

	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go p.worker(ctx, root, jobs, stats, &wg, progress)
	}

	for _, folder := range folders {
		jobs <- folder
	}
	close(jobs)

	wg.Wait()
}

func (p *Processor) worker(ctx context.Context, root string, jobs <-chan string, stats *BatchStats,
	wg *sync.WaitGroup, progress *logger.Progress) {
	defer wg.Done()

	for folder := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := p.ProcessFolder(ctx, filepath.Join(root, folder), progress)
		progress.FolderDone()

		stats.mu.Lock()
		stats.ProcessedFolders++
		switch {
		case err != nil:
			stats.FailedFolders++
			stats.Failures[folder] = err
			p.Console.With("folder", folder).Error("Error processing panorama folder %s: %v", folder, err)
		case result.Skipped:
			stats.SkippedFolders++
		default:
			stats.ImagesWritten += result.Images
			stats.NamedWritten += result.Named
			if result.Archive != "" {
				stats.Archives++
			}
		}
		stats.mu.Unlock()
	}
}

// ProcessFolder crops every image in folderDir/input into output/ and
// named_output/, then packs an archive when folderDir has a manifest.
// A folder without input images is skipped with a warning.
func (p *Processor) ProcessFolder(ctx context.Context, folderDir string, progress *logger.Progress) (_ *FolderResult, err error) {
	name := filepath.Base(folderDir)
	console := p.Console.With("folder", name)
	result := &FolderResult{Name: name}

	// pending is this folder's share of the file total not yet marked done.
	pending := filesPerFolder
	defer func() {
		if err != nil {
			progress.AddTotalFiles(-pending)
		}
	}()

	images, err := p.collectImages(filepath.Join(folderDir, inputDirName))
	if err != nil {
		return result, err
	}
	if len(images) == 0 {
		console.Warn("No images found in panorama folder %s", name)
		progress.AddTotalFiles(-pending)
		result.Skipped = true
		return result, nil
	}

	if err := p.sortByChangeTime(ctx, images); err != nil {
		return result, err
	}
	progress.AddTotalFiles(int64(len(images)) - pending)
	pending = int64(len(images))

	if len(images) > len(Faces) {
		console.Warn("Panorama folder %s has %d images; only the first %d get face names",
			name, len(images), len(Faces))
	}

	hasManifest, err := fileExists(filepath.Join(folderDir, manifestFileName))
	if err != nil {
		return result, err
	}

	for _, dir := range []string{outputDirName, namedOutputDirName} {
		if err := os.MkdirAll(filepath.Join(folderDir, dir), 0o755); err != nil {
			return result, fmt.Errorf("creating %s directory: %w", dir, err)
		}
	}

	outputs, done, err := p.cropAll(ctx, folderDir, images, progress)
	pending -= done
	if err != nil {
		return result, err
	}
	result.Images = len(outputs)
	result.Named = min(len(outputs), len(Faces))

	if hasManifest {
		archivePath, err := p.writeArchive(folderDir, outputs)
		if err != nil {
			return result, err
		}
		result.Archive = archivePath
		console.Success("Packed %s", filepath.Base(archivePath))
	}

	return result, nil
}

func (p *Processor) collectImages(inputDir string) ([]*sourceImage, error) {
	entries, err := os.ReadDir(inputDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing input directory: %w", err)
	}

	var images []*sourceImage
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		images = append(images, &sourceImage{
			name: e.Name(),
			path: filepath.Join(inputDir, e.Name()),
		})
	}
	return images, nil
}

// sortByChangeTime stats all images concurrently and orders them by status
// change time. ReadDir returns names in order, so ties keep name order.
func (p *Processor) sortByChangeTime(ctx context.Context, images []*sourceImage) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, img := range images {
		img := img
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info, err := os.Stat(img.path)
			if err != nil {
				return fmt.Errorf("failed to get file info: %w", err)
			}
			img.changed = p.changeTime(info)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].changed.Before(images[j].changed)
	})
	return nil
}

// cropAll returns the encoded outputs in index order and how many files were
// completed, which is less than len(images) when an error stopped the group.
func (p *Processor) cropAll(ctx context.Context, folderDir string, images []*sourceImage,
	progress *logger.Progress) ([][]byte, int64, error) {
	outputs := make([][]byte, len(images))
	slots := p.cropSlots()
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)

	for index, img := range images {
		index, img := index, img
		g.Go(func() error {
			if err := slots.Acquire(gctx, 1); err != nil {
				return err
			}
			defer slots.Release(1)

			data, err := os.ReadFile(img.path)
			if err != nil {
				return fmt.Errorf("error reading %s: %w", img.name, err)
			}

			out, err := crop.Square(data, p.CropOptions)
			if err != nil {
				return fmt.Errorf("%s: %w", img.name, err)
			}

			if err := writeOutputs(folderDir, index, out); err != nil {
				return err
			}

			outputs[index] = out
			done.Add(1)
			progress.FileDone()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, done.Load(), err
	}
	return outputs, done.Load(), nil
}

// writeOutputs writes the indexed file and, for the first six images, the
// face-named copy. Both writes run concurrently.
func writeOutputs(folderDir string, index int, data []byte) error {
	var g errgroup.Group

	g.Go(func() error {
		path := filepath.Join(folderDir, outputDirName, fmt.Sprintf("panorama_%d.png", index))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
		return nil
	})

	if index < len(Faces) {
		g.Go(func() error {
			path := filepath.Join(folderDir, namedOutputDirName, Faces[index]+".png")
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("error writing named output: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (p *Processor) writeArchive(folderDir string, outputs [][]byte) (string, error) {
	manifest, err := os.ReadFile(filepath.Join(folderDir, manifestFileName))
	if err != nil {
		return "", fmt.Errorf("error reading manifest: %w", err)
	}

	icon, err := os.ReadFile(filepath.Join(folderDir, iconFileName))
	if errors.Is(err, fs.ErrNotExist) {
		icon = nil
	} else if err != nil {
		return "", fmt.Errorf("error reading pack icon: %w", err)
	}

	archive, err := mcpack.Build(manifest, icon, outputs)
	if err != nil {
		return "", fmt.Errorf("error building archive: %w", err)
	}

	archivePath := filepath.Join(folderDir, p.ArchiveName(filepath.Base(folderDir)))
	if err := os.WriteFile(archivePath, archive, 0o644); err != nil {
		return "", fmt.Errorf("error writing archive: %w", err)
	}
	return archivePath, nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to get file info: %w", err)
}

func (p *Processor) displayResults(stats *BatchStats, duration time.Duration) {
	table := p.Console.NewTable([]string{"Metric", "Value"})
	table.AddRow("Panorama folders", fmt.Sprintf("%d/%d", stats.ProcessedFolders, stats.TotalFolders))
	table.AddRow("Skipped folders", fmt.Sprintf("%d", stats.SkippedFolders))
	table.AddRow("Failed folders", fmt.Sprintf("%d", stats.FailedFolders))
	table.AddRow("Images written", fmt.Sprintf("%d", stats.ImagesWritten))
	table.AddRow("Named faces written", fmt.Sprintf("%d", stats.NamedWritten))
	table.AddRow("Archives written", fmt.Sprintf("%d", stats.Archives))
	table.AddRow("Duration", duration.String())

	p.Console.Info("Processing Summary:")
	table.Print()
}
