// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// MaxMemberSize bounds each decompressed archive member.
const MaxMemberSize = 10 * 1024 * 1024 * 1024

// markerFile is written into a fully extracted tree.
const markerFile = ".extracted"

// Extract unpacks the tar.gz at archivePath into workDir/name and returns
// the analysis root: the archive's single top-level directory, or the
// extraction directory for a flat archive. Extraction happens in a staging
// directory that is renamed into place on success, so a completed tree is
// never partial; calling Extract again returns the existing tree. A
// directory passed as archivePath is treated as already extracted.
// Members ending in .gz are decompressed on the way out.
func Extract(ctx context.Context, archivePath, workDir, name string, logger zerolog.Logger) (string, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrResultFileMissing, archivePath)
	}
	if info.IsDir() {
		return analysisRoot(archivePath)
	}

	dest := filepath.Join(workDir, name)
	if done(dest) {
		logger.Debug().Str("dir", dest).Msg("archive already extracted")
		return analysisRoot(dest)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("creating work directory: %w", err)
	}
	// A tree without the marker is a leftover from an interrupted run.
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("removing incomplete extraction: %w", err)
	}

	staging, err := os.MkdirTemp(workDir, ".extract-*")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}

	n, err := decompress(ctx, archivePath, staging, logger)
	if err == nil {
		err = os.WriteFile(filepath.Join(staging, markerFile), nil, 0o644)
	}
	if err != nil {
		os.RemoveAll(staging)
		return "", err
	}

	if err := os.Rename(staging, dest); err != nil {
		os.RemoveAll(staging)
		// Another extraction of the same archive may have won the race.
		if done(dest) {
			return analysisRoot(dest)
		}
		return "", fmt.Errorf("renaming staging directory: %w", err)
	}

	logger.Info().Str("archive", archivePath).Str("dir", dest).Int("files", n).Msg("archive extracted")
	return analysisRoot(dest)
}

func done(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, markerFile))
	return err == nil
}

// analysisRoot returns the only top-level directory of dir, or dir itself.
func analysisRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading extracted tree: %w", err)
	}
	var visible []os.DirEntry
	for _, e := range entries {
		if e.Name() == markerFile {
			continue
		}
		visible = append(visible, e)
	}
	if len(visible) == 1 && visible[0].IsDir() {
		return filepath.Join(dir, visible[0].Name()), nil
	}
	return dir, nil
}

// decompress writes the members of a tar.gz into destDir and returns the
// number of files written.
func decompress(ctx context.Context, archivePath, destDir string, logger zerolog.Logger) (int, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return 0, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	var files int
	for {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return files, fmt.Errorf("reading tar header: %w", err)
		}

		cleanName, err := safeName(header.Name)
		if err != nil {
			return files, err
		}
		if cleanName == "." {
			continue
		}
		target := filepath.Join(destDir, cleanName)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, fmt.Errorf("creating directory: %w", err)
			}
		case tar.TypeReg:
			if header.Size > MaxMemberSize {
				return files, fmt.Errorf("archive member too large: %s", header.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return files, fmt.Errorf("creating directory: %w", err)
			}
			if nested(cleanName) {
				err = writeGunzipped(strings.TrimSuffix(target, ".gz"), tr)
			} else {
				err = writeFile(target, io.LimitReader(tr, header.Size))
			}
			if err != nil {
				return files, fmt.Errorf("extracting %s: %w", header.Name, err)
			}
			files++
		default:
			logger.Debug().Str("member", header.Name).Msg("skipping non-regular archive member")
		}
	}
	return files, nil
}

// safeName cleans a member name and rejects names escaping the archive.
func safeName(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid archive member path: %s", name)
	}
	return clean, nil
}

// nested reports whether a member is a gzip file to decompress in place.
func nested(name string) bool {
	return strings.HasSuffix(name, ".gz") && !strings.HasSuffix(name, ".tar.gz")
}

func writeFile(target string, r io.Reader) error {
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeGunzipped(target string, r io.Reader) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("opening nested gzip: %w", err)
	}
	defer zr.Close()

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, io.LimitReader(zr, MaxMemberSize+1))
	if err == nil && n > MaxMemberSize {
		err = errors.New("nested member too large")
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
