package walk

import (
	"os"
	"path/filepath"
	"sort"
)

// Entry is one filesystem node produced by an Iterator, in the same
// deterministic order every Iterator over the same root produces.
type Entry struct {
	Path    string
	IsDir   bool
	ModeSym bool // symlink, before any FollowSymlinks resolution
}

// dirFrame is one directory's pending, sorted child list plus a cursor
// into it, kept on Iterator's stack so traversal can suspend and resume
// across rounds without losing its place.
type dirFrame struct {
	names []string
	base  string
	idx   int
}

// Iterator performs a deterministic pre-order directory walk: children are
// visited in sorted-name order, a directory is yielded immediately before
// its children. Every Iterator built over the same root with the same
// FollowSymlinks setting yields the exact same sequence, independent of
// any other Iterator -- this is what lets N workers each own a private
// iterator yet agree on which visit index is whose.
type Iterator struct {
	followSymlinks bool
	stack          []*dirFrame
	started        bool
	root           string
	done           bool
}

// NewIterator builds an iterator rooted at root. If followSymlinks is
// false (the default, physical traversal, grep -r), symlinked directories
// are yielded as entries but not descended into.
func NewIterator(root string, followSymlinks bool) *Iterator {
	return &Iterator{root: root, followSymlinks: followSymlinks}
}

// Next yields the next entry in the deterministic traversal order, or
// ok=false once the tree is exhausted. It is resumable: a Next call after
// a prior one picks up exactly where the last left off, which is what lets
// the walker suspend a round at a node-count ceiling and resume next round
// with the iterator's position intact.
func (it *Iterator) Next() (Entry, bool, error) {
	if it.done {
		return Entry{}, false, nil
	}

	if !it.started {
		it.started = true
		info, err := os.Lstat(it.root)
		if err != nil {
			it.done = true
			return Entry{}, false, err
		}
		isDir := info.IsDir()
		isSym := info.Mode()&os.ModeSymlink != 0
		if isDir {
			if err := it.pushDir(it.root); err != nil {
				it.done = true
				return Entry{}, false, err
			}
		} else {
			it.done = true
		}
		return Entry{Path: it.root, IsDir: isDir, ModeSym: isSym}, true, nil
	}

	for len(it.stack) > 0 {
		top := it.stack[len(it.stack)-1]
		if top.idx >= len(top.names) {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		name := top.names[top.idx]
		top.idx++
		path := filepath.Join(top.base, name)

		info, err := os.Lstat(path)
		if err != nil {
			return Entry{Path: path}, true, err
		}
		isSym := info.Mode()&os.ModeSymlink != 0
		isDir := info.IsDir()
		if isSym && it.followSymlinks {
			if resolved, err := os.Stat(path); err == nil {
				isDir = resolved.IsDir()
			}
		}

		if isDir && (!isSym || it.followSymlinks) {
			if err := it.pushDir(path); err != nil {
				return Entry{Path: path, IsDir: true, ModeSym: isSym}, true, err
			}
		}

		return Entry{Path: path, IsDir: isDir, ModeSym: isSym}, true, nil
	}

	it.done = true
	return Entry{}, false, nil
}

func (it *Iterator) pushDir(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	names, err := f.Readdirnames(-1)
	f.Close()
	if err != nil {
		return err
	}
	sort.Strings(names)
	it.stack = append(it.stack, &dirFrame{names: names, base: path})
	return nil
}
