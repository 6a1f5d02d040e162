package export

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// buildArchive packs every regular file directly inside srcDir into a
// gzip-compressed tar at destPath. Entries use the file's base name, so any
// directory structure is flattened; subdirectories are not descended into.
// Entries are written in sorted name order for reproducible archives.
func buildArchive(srcDir, destPath string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return fmt.Errorf("read export dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return fmt.Errorf("export dir %s has no files to archive", srcDir)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	for _, name := range names {
		if err := addArchiveEntry(tw, filepath.Join(srcDir, name), name); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalize tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finalize gzip stream: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func addArchiveEntry(tw *tar.Writer, path, name string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat archive entry: %w", err)
	}
	hdr, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return fmt.Errorf("build tar header for %s: %w", name, err)
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header for %s: %w", name, err)
	}

	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive entry: %w", err)
	}
	defer fh.Close()

	if _, err := io.Copy(tw, fh); err != nil {
		return fmt.Errorf("write tar entry %s: %w", name, err)
	}
	return nil
}
