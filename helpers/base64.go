package helpers

import (
	"encoding/base64"
	"strings"
)

// Base64EncWithoutPadding base64-encodes b without padding
func Base64EncWithoutPadding(b []byte) string {
	s := base64.StdEncoding.EncodeToString(b)
	return strings.TrimRight(s, "=")
}

// Base64DecodeNonPadded decodes s whether or not it carries padding
func Base64DecodeNonPadded(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if len(s)%4 != 0 {
		s = s + strings.Repeat("=", 4-len(s)%4)
	}
	return base64.StdEncoding.DecodeString(s)
}
