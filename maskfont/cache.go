// seehuhn.de/go/pdfpatch - in-place text rewriting for PDF files
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package maskfont

import (
	"os"
	"path/filepath"
)

// Cache is a content-addressed store for derivative font files.  It must
// support concurrent readers.
type Cache interface {
	// Get returns the cached font file for key.  A corrupt or missing
	// entry reports ok == false.
	Get(key string) (data []byte, ok bool)

	// Put stores a font file under key.
	Put(key string, data []byte) error
}

// DirCache stores font files in a directory, one file per key.  Writes go
// to a temporary file first and are published by rename, so concurrent
// lookups never observe a partially written font.
type DirCache struct {
	Dir string
}

// NewDirCache creates the cache directory if needed.
func NewDirCache(dir string) (*DirCache, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	return &DirCache{Dir: dir}, nil
}

func (c *DirCache) path(key string) string {
	return filepath.Join(c.Dir, key+".ttf")
}

// Get implements the [Cache] interface.
func (c *DirCache) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil || !looksLikeFont(data) {
		// corrupt entries count as misses and get rebuilt
		return nil, false
	}
	return data, true
}

// Put implements the [Cache] interface.
func (c *DirCache) Put(key string, data []byte) error {
	tmp, err := os.CreateTemp(c.Dir, "tmp-*")
	if err != nil {
		return err
	}
	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}

// looksLikeFont checks for an sfnt header.
func looksLikeFont(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	switch string(data[:4]) {
	case "\x00\x01\x00\x00", "true", "OTTO", "ttcf":
		return true
	}
	return false
}
