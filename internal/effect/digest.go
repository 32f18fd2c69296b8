package effect

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Digest computes the hex SHA-256 hash of the RFC 8785 canonical form of the
// exported tree. Equal trees have equal digests regardless of how their
// results were formatted.
func Digest(nodes []Node) (string, error) {
	data, err := Export(nodes)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("canonical json: %w", err)
	}
	hash := sha256.Sum256(canonical)
	return hex.EncodeToString(hash[:]), nil
}
