package registry

import "strings"

// NormalizeKey turns a phone number or chat id ("5217771234567@c.us",
// "+52 1 777 123 4567") into the registry key "+5217771234567".
// It returns "" when no digits are present.
func NormalizeKey(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "@:"); i >= 0 {
		s = s[:i]
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "+" + b.String()
}

// ChatID returns the chat address for a registry key.
func ChatID(key string) string {
	digits := strings.TrimPrefix(NormalizeKey(key), "+")
	if digits == "" {
		return ""
	}
	return digits + "@c.us"
}
