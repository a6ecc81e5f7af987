package uploader

import (
	"encoding/hex"
	"fmt"
	"io"
)

const (
	// CopySeparator sits between the desired name and the random suffix.
	CopySeparator = "_copy_"

	suffixBytes = 4
)

// conflictName derives "<desired>_copy_<8 hex chars>" from 4 random bytes.
func conflictName(desired string, random io.Reader) (string, error) {
	b := make([]byte, suffixBytes)
	if _, err := io.ReadFull(random, b); err != nil {
		return "", fmt.Errorf("failed to generate name suffix: %w", err)
	}
	return desired + CopySeparator + hex.EncodeToString(b), nil
}
