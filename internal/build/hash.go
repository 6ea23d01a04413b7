package build

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ContentHash returns the hex xxhash of data, truncated to length
// characters. A length outside 1..16 returns the full digest.
func ContentHash(data []byte, length int) string {
	digest := strconv.FormatUint(xxhash.Sum64(data), 16)
	for len(digest) < 16 {
		digest = "0" + digest
	}

	if length <= 0 || length >= len(digest) {
		return digest
	}

	return digest[:length]
}
