package cond

import (
	"os"
	"path/filepath"
	"strings"
)

const fluxSubdir = ".flux"

// keyPath maps a dotted condition key to a path under root, one path
// component per slash-separated segment so "service/foo/ready" becomes
// root/service/foo/ready.
func keyPath(root, key string) string {
	return filepath.Join(append([]string{root}, strings.Split(key, "/")...)...)
}

func fluxPath(root, key string) string {
	return filepath.Join(append([]string{root, fluxSubdir}, strings.Split(key, "/")...)...)
}

// syncDisk mirrors a condition transition onto the filesystem: an
// empty marker file under root for ON, the same path under root/.flux
// for FLUX, and the absence of both for OFF.
func syncDisk(root, key string, state State) {
	p := keyPath(root, key)
	fp := fluxPath(root, key)

	switch state {
	case On:
		os.Remove(fp)
		touch(p)
	case Flux:
		os.Remove(p)
		touch(fp)
	default: // Off
		os.Remove(p)
		os.Remove(fp)
	}
}

func touch(path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	f.Close()
}

// loadDisk walks root (skipping the flux shadow subtree) and root's
// flux subtree to reconstruct the in-memory map from a prior run.
func loadDisk(root string) (map[string]State, error) {
	values := make(map[string]State)

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			if path != root && filepath.Base(path) == fluxSubdir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		values[filepath.ToSlash(rel)] = On
		return nil
	})
	if err != nil {
		return nil, err
	}

	fluxRoot := filepath.Join(root, fluxSubdir)
	err = filepath.Walk(fluxRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(fluxRoot, path)
		if err != nil {
			return err
		}
		values[filepath.ToSlash(rel)] = Flux
		return nil
	})
	if err != nil {
		return nil, err
	}

	return values, nil
}
