// Package mcpack assembles resource-pack archives: a zip container holding a
// manifest, an optional icon and the panorama textures.
package mcpack

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
)

const (
	Extension    = "mcpack"
	ManifestName = "manifest.json"
	IconName     = "pack_icon.png"
)

// Entries carry a fixed timestamp so rebuilding from the same inputs gives
// identical archive bytes.
var entryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// TexturePath is the archive path of the panorama texture at index.
func TexturePath(index int) string {
	return fmt.Sprintf("textures/ui/panorama_%d.png", index)
}

// Build returns a zip archive containing manifest as manifest.json, icon as
// pack_icon.png when non-nil, and every image under TexturePath in order.
func Build(manifest, icon []byte, images [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, manifest, icon, images); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Write(w io.Writer, manifest, icon []byte, images [][]byte) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	if err := addEntry(zw, ManifestName, manifest); err != nil {
		return err
	}
	if icon != nil {
		if err := addEntry(zw, IconName, icon); err != nil {
			return err
		}
	}
	for i, img := range images {
		if err := addEntry(zw, TexturePath(i), img); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing zip writer: %w", err)
	}
	return nil
}

func addEntry(zw *zip.Writer, name string, data []byte) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: entryTime,
	}
	fw, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("writing zip header %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("writing zip entry %s: %w", name, err)
	}
	return nil
}
