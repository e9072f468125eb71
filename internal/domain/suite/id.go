package suite

import (
	"strings"

	"github.com/google/uuid"
)

// NewCaseID returns a fresh "TC-XXXXXXXX" case identifier.
func NewCaseID() string {
	return "TC-" + shortHex()
}

// NewSuiteID returns a fresh "TS-XXXXXXXX" suite identifier.
func NewSuiteID() string {
	return "TS-" + shortHex()
}

func shortHex() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(hex[:8])
}
