package store

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"

	"github.com/macapark/dashboard/internal/models"
)

// LotFingerprint returns a stable content hash of lot, used as an HTTP
// ETag and to detect no-op lot updates. A nil lot hashes to "".
func LotFingerprint(lot *models.LotDefinition) string {
	if lot == nil {
		return ""
	}
	data, err := json.Marshal(lot)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
