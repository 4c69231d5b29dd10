// Package search recursively discovers TOD container files under a local
// or object-store URI, using TileDB's VFS so the same code path handles
// both without a protocol-specific branch.
package search

import (
	"fmt"
	"path/filepath"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// defaultPatterns matches the legacy octave-struct and FITS TOD
// container extensions.
var defaultPatterns = []string{"*.tod-legacy", "*.fits"}

// trawl recursively lists uri for files matching any of patterns,
// appending matches to items.
func trawl(vfs *tiledb.VFS, patterns []string, uri string, items []string) ([]string, error) {
	dirs, files, err := vfs.List(uri)
	if err != nil {
		return items, fmt.Errorf("search: listing %s: %w", uri, err)
	}

	for _, file := range files {
		base := filepath.Base(file)
		for _, pattern := range patterns {
			match, err := filepath.Match(pattern, base)
			if err != nil {
				return items, fmt.Errorf("search: bad pattern %q: %w", pattern, err)
			}
			if match {
				items = append(items, file)
				break
			}
		}
	}

	for _, dir := range dirs {
		items, err = trawl(vfs, patterns, dir, items)
		if err != nil {
			return items, err
		}
	}

	return items, nil
}

// FindTODContainers recursively lists TOD container files (legacy
// octave-struct and FITS) under uri, which may be a local filesystem path
// or an object-store URI understood by TileDB's VFS. configURI, if
// non-empty, names a TileDB config file used to authenticate against the
// object store.
func FindTODContainers(uri, configURI string) ([]string, error) {
	return findWithPatterns(uri, configURI, defaultPatterns)
}

// findWithPatterns is FindTODContainers generalized to a caller-supplied
// pattern set, kept unexported since every current caller wants the
// default TOD container extensions.
func findWithPatterns(uri, configURI string, patterns []string) ([]string, error) {
	var (
		config *tiledb.Config
		err    error
	)

	if configURI == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(configURI)
	}
	if err != nil {
		return nil, fmt.Errorf("search: building tiledb config: %w", err)
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return nil, fmt.Errorf("search: building tiledb context: %w", err)
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("search: building tiledb vfs: %w", err)
	}
	defer vfs.Free()

	return trawl(vfs, patterns, uri, make([]string, 0))
}
