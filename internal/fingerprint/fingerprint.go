// Package fingerprint computes the deterministic dedup key for unified records.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// separator keeps ("ab", "c") and ("a", "bc") apart.
const separator = "\x1f"

// Compute returns the hex SHA-256 digest of the ordered fields.
// Each field is rendered with Text before hashing.
func Compute(fields ...interface{}) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = Text(f)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, separator)))
	return hex.EncodeToString(sum[:])
}

// Record returns the fingerprint of a unified record's identity tuple.
func Record(sourceType, originalID string, price float64, publishedAt time.Time) string {
	return Compute(sourceType, originalID, price, publishedAt)
}

// Text renders a field in a stable, locale-independent form.
func Text(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
