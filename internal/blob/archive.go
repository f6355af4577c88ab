package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// WriteArchive bundles the given files into one zip archive, each stored
// under its base name. A base name already taken by an earlier file gets a
// "-2", "-3"... suffix before the extension. Files that no longer exist are
// skipped and listed in File.Skipped; any other read error fails the archive.
func (d *Dir) WriteArchive(ctx context.Context, name string, paths []string) (*File, error) {
	var skipped []string
	entries := 0

	out, err := d.atomicWrite(name, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		names := entryNames{}
		for _, p := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := addFile(zw, p, names)
			if err != nil {
				return err
			}
			if !ok {
				skipped = append(skipped, p)
				continue
			}
			entries++
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("close archive: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Entries = entries
	out.Skipped = skipped
	return out, nil
}

// entryNames hands out unique archive entry names.
type entryNames map[string]int

func (n entryNames) next(path string) string {
	name := filepath.Base(path)
	for {
		n[name]++
		if n[name] == 1 {
			return name
		}
		ext := filepath.Ext(name)
		cand := fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n[name], ext)
		if _, taken := n[cand]; !taken {
			n[cand] = 1
			return cand
		}
	}
}

// addFile copies one file into the archive. It returns false when the file
// does not exist.
func addFile(zw *zip.Writer, path string, names entryNames) (bool, error) {
	src, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return false, fmt.Errorf("zip header %s: %w", path, err)
	}
	hdr.Name = names.next(path)
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return false, fmt.Errorf("zip entry %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return false, fmt.Errorf("copy %s: %w", path, err)
	}
	return true, nil
}
