// Package archive packages staged application directories into
// deterministic zip archives.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/edupack/concord-stager/internal/hash/sha256"
)

// Entry metadata is pinned so that packaging the same tree twice yields
// byte-identical archives regardless of filesystem timestamps or host.
var fixedModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Packager implements pipeline.Packager. Archives are content-addressed:
// the filename is the sha256 of the archive bytes.
type Packager struct {
	outDir string
	logger *zap.Logger
}

// New validates the output directory and builds a Packager.
func New(outDir string, logger *zap.Logger) (*Packager, error) {
	if outDir == "" {
		return nil, fmt.Errorf("output directory must not be empty")
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", outDir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Packager{outDir: outDir, logger: logger}, nil
}

// Package walks the staging directory, writes every regular file into a
// zip with sorted entries and fixed metadata, and stores the archive under
// its content digest.
func (p *Packager) Package(stagingDir string) (string, error) {
	paths, err := collectFiles(stagingDir)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("staging dir %s holds no files to package", stagingDir)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(stagingDir, filepath.FromSlash(rel)))
		if err != nil {
			return "", fmt.Errorf("read staged file %s: %w", rel, err)
		}
		hdr := &zip.FileHeader{
			Name:     rel,
			Method:   zip.Deflate,
			Modified: fixedModTime,
		}
		hdr.SetMode(0o644)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return "", fmt.Errorf("create archive entry %s: %w", rel, err)
		}
		if _, err := w.Write(data); err != nil {
			return "", fmt.Errorf("write archive entry %s: %w", rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}

	digest, err := sha256.New().Hash(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("hash archive: %w", err)
	}
	target := filepath.Join(p.outDir, digest+".zip")
	if err := os.WriteFile(target, buf.Bytes(), 0o600); err != nil {
		return "", fmt.Errorf("write archive %s: %w", target, err)
	}
	p.logger.Debug("packaged staging dir",
		zap.String("staging_dir", stagingDir),
		zap.String("archive", target),
		zap.Int("files", len(paths)),
	)
	return target, nil
}

// collectFiles lists every regular file under root as a sorted slice of
// slash-separated relative paths.
func collectFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk staging dir %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}
