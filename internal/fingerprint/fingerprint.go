package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/ururulab/imageingest/internal/domain"
)

// Sum streams r through SHA-256 and returns the hex fingerprint.
// The fingerprint is a dedup key for downstream consumers, it is not
// security-sensitive. A read failure is reported as ErrPayloadUnreadable
// so intake can skip the single bad item instead of failing the batch.
func Sum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPayloadUnreadable, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
