package domain

import (
	"strings"

	"github.com/google/uuid"
)

// TempOidPrefix marks identifiers synthesized locally before the backend
// assigned a real one.
const TempOidPrefix = "fedsynctemp:"

// IsRealOid reports whether oid was assigned by a backend.
func IsRealOid(oid string) bool {
	return oid != "" && !strings.HasPrefix(oid, TempOidPrefix)
}

func IsTempOid(oid string) bool {
	return strings.HasPrefix(oid, TempOidPrefix)
}

// ToTempOid derives a deterministic temporary oid from s.
func ToTempOid(s string) string {
	if s == "" || IsTempOid(s) {
		return s
	}
	return TempOidPrefix + s
}

// NewTempOid returns a fresh random temporary oid.
func NewTempOid() string {
	return TempOidPrefix + uuid.NewString()
}
