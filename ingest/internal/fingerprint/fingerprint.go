// Package fingerprint computes the content hash used to detect whether a
// resubmitted event changed any business field.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/telhawk-systems/linehawk/ingest/internal/models"
)

// Size is the length of a fingerprint in hex characters.
const Size = blake2b.Size256 * 2

// Compute returns the lowercase hex BLAKE2b-256 digest of the event's business
// fields. Receipt metadata is not part of the input.
func Compute(e models.InboundEvent) string {
	h, _ := blake2b.New256(nil) // only fails for oversized keys

	writeField(h, e.EventID)
	writeField(h, models.NormalizeTime(e.EventTime).Format(time.RFC3339Nano))
	writeField(h, e.MachineID)
	writeField(h, e.FactoryID)
	writeField(h, e.LineID)
	writeField(h, strconv.FormatInt(e.DurationMs, 10))
	writeField(h, strconv.Itoa(e.DefectCount))

	return hex.EncodeToString(h.Sum(nil))
}

// writeField length-prefixes each value so ("ab","c") and ("a","bc") differ.
func writeField(h hash.Hash, v string) {
	var prefix [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(prefix[:], uint64(len(v)))
	h.Write(prefix[:n])
	h.Write([]byte(v))
}
