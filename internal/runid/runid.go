// Package runid generates identifiers for extraction runs.
package runid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generate creates a new unique run ID.
// Format: run-<timestamp>-<random>
// Example: run-1701432000-a1b2c3d4
func Generate() string {
	timestamp := time.Now().Unix()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		return fmt.Sprintf("run-%d", timestamp)
	}
	return fmt.Sprintf("run-%d-%s", timestamp, hex.EncodeToString(random))
}
