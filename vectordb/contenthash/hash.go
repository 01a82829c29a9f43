// Package contenthash provides the content identity used for dedup: a 64-bit
// highwayhash over the primary text.
package contenthash

import (
	"github.com/minio/highwayhash"
)

var key = []byte("0123456789ABCDEF0123456789ABCDEF")

// Hash creates a content hash for the input data.
func Hash(data []byte) (uint64, error) {
	h, err := highwayhash.New64(key)
	if err != nil {
		return 0, err
	}
	if _, err = h.Write(data); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// HashText hashes text content, swallowing the only error path (bad key
// length) which cannot occur with the fixed key.
func HashText(text string) uint64 {
	sum, _ := Hash([]byte(text))
	return sum
}
