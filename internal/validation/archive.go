package validation

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxExtractedSize caps the cumulative decompressed bytes an archive may
	// expand to, bounding gzip bombs that are small on the wire.
	MaxExtractedSize = 256 * 1024 * 1024
	// MaxEntryCount caps the number of entries in an archive.
	MaxEntryCount = 10000
)

// ExtractArchive unpacks a gzipped tarball into destDir. Entries must be
// regular files or directories with clean relative paths; anything that
// would escape destDir (absolute paths, ".." traversal, links) fails the
// whole extraction, as does exceeding the decompressed size or entry
// count caps.
func ExtractArchive(archivePath, destDir string) error {
	return extractArchive(archivePath, destDir, MaxExtractedSize, MaxEntryCount)
}

func extractArchive(archivePath, destDir string, maxSize int64, maxEntries int) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("archive is not valid gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var totalSize int64
	entryCount := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("archive is not valid tar: %w", err)
		}

		entryCount++
		if entryCount > maxEntries {
			return fmt.Errorf("archive has more than %d entries", maxEntries)
		}

		name, err := sanitizeEntryName(hdr.Name)
		if err != nil {
			return err
		}
		target := filepath.Join(destDir, filepath.FromSlash(name))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}
			// The header size is untrusted; count the bytes actually
			// decompressed against the cumulative cap.
			written, err := io.Copy(out, io.LimitReader(tr, maxSize-totalSize+1))
			if err != nil {
				out.Close()
				return fmt.Errorf("failed to extract %s: %w", name, err)
			}
			out.Close()
			totalSize += written
			if totalSize > maxSize {
				return fmt.Errorf("archive decompresses to more than %d bytes", maxSize)
			}
		default:
			return fmt.Errorf("archive entry %s has unsupported type", hdr.Name)
		}
	}

	return nil
}

// sanitizeEntryName normalises a tar entry name to a clean slash path
// relative to the archive root.
func sanitizeEntryName(name string) (string, error) {
	cleaned := filepath.ToSlash(filepath.Clean(name))
	if cleaned == "." {
		return "", fmt.Errorf("archive entry has empty name")
	}
	if strings.HasPrefix(cleaned, "/") || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("archive entry %s escapes the archive root", name)
	}
	return cleaned, nil
}

// PackArchive builds a gzipped tarball at archivePath from the contents of
// srcDir. Entry names are slash paths relative to srcDir, so repackaged
// archives are independent of the staging directory location.
func PackArchive(srcDir, archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to pack archive: %w", err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalise tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finalise gzip: %w", err)
	}

	return nil
}
