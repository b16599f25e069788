package service

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"strings"
)

func newID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// newFileKey keeps the original extension so the stored object stays
// recognizable, but the key itself is opaque.
func newFileKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return newID() + ext
}
