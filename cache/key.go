package cache

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// FingerprintWindow is the size of each sampled window.
const FingerprintWindow = 64 << 10

// Fingerprint hashes the length of data plus its first, middle and last
// windows. Inputs no larger than three windows are hashed whole.
func Fingerprint(data []byte) string {
	h := xxhash.New()
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(data)))
	_, _ = h.Write(n[:])

	if len(data) <= 3*FingerprintWindow {
		_, _ = h.Write(data)
	} else {
		mid := len(data)/2 - FingerprintWindow/2
		_, _ = h.Write(data[:FingerprintWindow])
		_, _ = h.Write(data[mid : mid+FingerprintWindow])
		_, _ = h.Write(data[len(data)-FingerprintWindow:])
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// Key identifies a cached transcript.
type Key struct {
	Fingerprint string
	BackendID   string
	ModelID     string
	Language    string
	// Options covers any other request setting, e.g. a prompt or temperature.
	Options string
}

// String renders the key as a single storage key. Each field is length
// prefixed so no field value can shift a boundary.
func (k Key) String() string {
	var b strings.Builder
	for i, f := range []string{k.Fingerprint, k.BackendID, k.ModelID, k.Language, k.Options} {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Itoa(len(f)))
		b.WriteByte(':')
		b.WriteString(f)
	}
	return b.String()
}
