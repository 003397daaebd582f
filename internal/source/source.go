// Package source enumerates XML documents from directories and zip archives.
package source

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rezonia/cedula-processor/internal/model"
)

// MaxEntrySize bounds a single decompressed zip entry
const MaxEntrySize = 32 << 20

// File is one XML document ready to be parsed
type File struct {
	// Path is the file path, or "<archive>/<entry>" for zip members
	Path string
	Data []byte
}

// Scan walks root in lexical order and returns every .xml file plus the
// .xml members of every .zip archive found. Archives are read in memory;
// nothing is extracted or deleted on disk.
func Scan(ctx context.Context, root string) ([]File, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &model.InputNotFoundError{Path: root, Cause: err}
	}

	if !info.IsDir() {
		return readOne(root)
	}

	var files []File
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch {
		case IsXML(p):
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read %s: %w", p, err)
			}
			files = append(files, File{Path: p, Data: data})
		case IsZip(p):
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read %s: %w", p, err)
			}
			entries, err := ExpandZip(p, data)
			if err != nil {
				return err
			}
			files = append(files, entries...)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &model.InputNotFoundError{Path: root, Cause: err}
	}

	return files, nil
}

func readOne(p string) ([]File, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, &model.InputNotFoundError{Path: p, Cause: err}
	}
	if IsZip(p) {
		return ExpandZip(p, data)
	}
	return []File{{Path: p, Data: data}}, nil
}

// ExpandZip returns the .xml members of an in-memory zip archive, ordered
// by entry name. Member paths are joined to name with a slash.
func ExpandZip(name string, data []byte) ([]File, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", name, err)
	}

	var files []File
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || !IsXML(zf.Name) || isJunk(zf.Name) {
			continue
		}
		if zf.UncompressedSize64 > MaxEntrySize {
			return nil, fmt.Errorf("zip %s: entry %s exceeds %d bytes", name, zf.Name, MaxEntrySize)
		}

		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("zip %s: open %s: %w", name, zf.Name, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("zip %s: read %s: %w", name, zf.Name, err)
		}

		files = append(files, File{
			Path: filepath.ToSlash(name) + "/" + path.Clean(zf.Name),
			Data: content,
		})
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// IsXML reports whether p has an .xml extension, in any case
func IsXML(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".xml")
}

// IsZip reports whether p has a .zip extension, in any case
func IsZip(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".zip")
}

// isJunk skips resource-fork copies macOS adds to archives
func isJunk(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._")
}
