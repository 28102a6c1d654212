package security

import (
	"strings"
	"unicode/utf8"
)

// MaxUploadBytes is the ceiling for decoded image uploads.
const MaxUploadBytes = 5 << 20

var allowedImageExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"webp": true,
}

// SanitizeText trims surrounding whitespace and truncates the result to at
// most maxLength characters.
func SanitizeText(input string, maxLength int) string {
	s := strings.TrimSpace(input)
	if maxLength <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLength])
}

// ValidateImageExtension returns the lower-cased final extension of filename
// if it is an allowed image type. Only the last segment counts, so
// "evil.png.exe" is rejected and "a.exe.png" is accepted.
func ValidateImageExtension(filename string) (string, bool) {
	name := filename
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	dot := strings.LastIndex(name, ".")
	if dot < 0 || dot == len(name)-1 {
		return "", false
	}
	ext := strings.ToLower(name[dot+1:])
	if !allowedImageExtensions[ext] {
		return "", false
	}
	return ext, true
}

// StripDataURL removes a "data:<mime>;base64," header if present.
func StripDataURL(payload string) string {
	if strings.HasPrefix(payload, "data:") {
		if i := strings.Index(payload, ","); i >= 0 {
			return payload[i+1:]
		}
	}
	return payload
}

// EncodedSize estimates the decoded size of a base64 payload as
// floor(len*3/4) minus trailing padding, without decoding it.
func EncodedSize(payload string) int {
	encoded := strings.TrimSpace(StripDataURL(payload))
	size := len(encoded) * 3 / 4
	size -= len(encoded) - len(strings.TrimRight(encoded, "="))
	if size < 0 {
		return 0
	}
	return size
}

// ValidateEncodedSize checks the estimated decoded size against maxBytes,
// inclusive.
func ValidateEncodedSize(payload string, maxBytes int) bool {
	return EncodedSize(payload) <= maxBytes
}

// SanitizeIdentifierForPath keeps only [A-Za-z0-9-] so the value can be
// interpolated into a storage path.
func SanitizeIdentifierForPath(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
