package cache

import (
	"fmt"
	"hash/crc32"
	"strconv"
	"time"

	"github.com/spf13/afero"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// RecentWindow is how long after its last modification a file is always
// re-read. Filesystem timestamps can be coarser than edits, so a same-size
// write inside one tick would otherwise reuse the old checksum.
const RecentWindow = 2 * time.Second

// Sum returns the CRC32 Castagnoli checksum of data as lowercase hex.
func Sum(data []byte) string {
	return strconv.FormatUint(uint64(crc32.Checksum(data, castagnoli)), 16)
}

// HashProvider computes content checksums of template sources, memoised by
// path, modification time and size so unchanged files are not re-read.
// Files modified within RecentWindow are never memoised.
type HashProvider struct {
	fs    afero.Fs
	cache *Cache
}

// NewHashProvider creates a hash provider reading through fs.
func NewHashProvider(fs afero.Fs, cache *Cache) *HashProvider {
	return &HashProvider{fs: fs, cache: cache}
}

// Checksum returns the content checksum of the file at path.
func (hp *HashProvider) Checksum(path string) (string, error) {
	stat, err := hp.fs.Stat(path)
	if err != nil {
		return "", err
	}

	memoise := time.Since(stat.ModTime()) >= RecentWindow
	metadataKey := fmt.Sprintf("%s:%d:%d", path, stat.ModTime().UnixNano(), stat.Size())
	if memoise {
		if sum, ok := hp.cache.Get(metadataKey); ok {
			return string(sum), nil
		}
	}

	content, err := afero.ReadFile(hp.fs, path)
	if err != nil {
		return "", err
	}

	sum := Sum(content)
	if memoise {
		hp.cache.Set(metadataKey, []byte(sum))
	}
	return sum, nil
}

// Stats returns statistics of the underlying metadata cache.
func (hp *HashProvider) Stats() Stats {
	return hp.cache.Stats()
}
