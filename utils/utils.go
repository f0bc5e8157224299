package utils

import (
	"os"

	uuid "github.com/satori/go.uuid"
)

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// UUIDStr formats 16 raw bytes as a uuid string
func UUIDStr(uuidBytes []byte) (string, error) {
	u, err := uuid.FromBytes(uuidBytes)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// ParseServiceID parses an ACI or a "PNI:"-prefixed PNI service id.
func ParseServiceID(s string) (uuid.UUID, error) {
	if len(s) > 4 && s[:4] == "PNI:" {
		s = s[4:]
	}
	return uuid.FromString(s)
}
