// Copyright (C) 2024 The progsvm Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package progs

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// LoadFile reads a progs.dat (optionally zstd-compressed, recognized by
// a ".zst" suffix) from disk and parses it with Load. The read itself
// goes through readFileBytes, which mmaps the file on platforms that
// support it (see loader_mmap_unix.go / loader_mmap_other.go) to avoid
// copying large progs.dat files wholesale before parsing even begins.
func LoadFile(path string) (*Loaded, error) {
	data, err := readFileBytes(path)
	if err != nil {
		return nil, fmtErr(KindFormat, "load_file", "reading %s: %v", path, err)
	}
	if strings.HasSuffix(path, ".zst") {
		data, err = decompressZstd(data)
		if err != nil {
			return nil, fmtErr(KindFormat, "load_file", "decompressing %s: %v", path, err)
		}
	}
	return Load(data)
}

func decompressZstd(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(compressed, nil)
}

// readFileBytesFallback is the plain os.ReadFile path used on platforms
// without a mmap implementation in this package, and as the fallback
// when the file is too large to map or the mmap call fails. A
// zero-length file never reaches it: the mmap path returns no bytes.
func readFileBytesFallback(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
