package domain

import (
	"strings"
	"unicode"
)

const maxNicknameLength = 32

// ValidNickname reports whether a name is usable as a registry key.
// Channel-looking or prefix-looking names would make reply lines
// ambiguous, so they are rejected outright.
func ValidNickname(name string) bool {
	if name == "" || len(name) > maxNicknameLength {
		return false
	}
	if strings.HasPrefix(name, "#") || strings.HasPrefix(name, ":") {
		return false
	}
	for _, r := range name {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
