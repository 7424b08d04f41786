package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed returns a deterministic generator seed for a date using
// HMAC(salt, YYYY-MM-DD). Every process with the same salt derives the
// same daily puzzle without any shared storage.
func Seed(date time.Time, salt string) int64 {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	// take first 8 bytes to int64 for the rand source
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
