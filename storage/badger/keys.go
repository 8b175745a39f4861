package badger

import (
	"encoding/binary"

	"github.com/poiesic/ragflow/core"
)

// Key prefixes for different data types
const (
	documentPrefix = "docrec"
)

// makeDocumentKey generates a key for a document by ID.
// Format: prefix:id, with the ID written BigEndian so iteration is ID ordered.
func makeDocumentKey(id core.ID) []byte {
	prefix := []byte(documentPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}
