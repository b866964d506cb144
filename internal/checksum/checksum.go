// Package checksum implements the Spanish mod-23 check letter and the ICAO 9303
// MRZ check digit. Every function is total: malformed input yields false, never a panic.
package checksum

import (
	"regexp"
	"strconv"
)

// DNILetters maps number mod 23 to its check letter.
const DNILetters = "TRWAGMYFPDXBNJZSQVHLCKE"

var (
	dniPattern = regexp.MustCompile(`^\d{8}[A-Z]$`)
	niePattern = regexp.MustCompile(`^[XYZ]\d{7}[A-Z]$`)
)

// IsDNIFormat reports whether s has the 8 digits + letter structure.
func IsDNIFormat(s string) bool {
	return dniPattern.MatchString(s)
}

// IsNIEFormat reports whether s has the X/Y/Z + 7 digits + letter structure.
func IsNIEFormat(s string) bool {
	return niePattern.MatchString(s)
}

// IsSpanishIDFormat reports whether s is structurally a DNI or a NIE.
func IsSpanishIDFormat(s string) bool {
	return IsDNIFormat(s) || IsNIEFormat(s)
}

// DNILetter returns the check letter for n. Negative n is folded into range.
func DNILetter(n int) byte {
	idx := n % 23
	if idx < 0 {
		idx += 23
	}
	return DNILetters[idx]
}

// ValidDNI reports whether s is a structurally valid DNI with a matching check letter.
func ValidDNI(s string) bool {
	if !IsDNIFormat(s) {
		return false
	}
	n, err := strconv.Atoi(s[:8])
	if err != nil {
		return false
	}
	return DNILetter(n) == s[8]
}

// ValidNIE reports whether s is a structurally valid NIE with a matching check letter.
// The prefix X/Y/Z stands for 0/1/2 in front of the 7-digit body.
func ValidNIE(s string) bool {
	if !IsNIEFormat(s) {
		return false
	}
	prefix := map[byte]byte{'X': '0', 'Y': '1', 'Z': '2'}[s[0]]
	n, err := strconv.Atoi(string(prefix) + s[1:8])
	if err != nil {
		return false
	}
	return DNILetter(n) == s[8]
}

// ValidDocumentNumber validates either a DNI or a NIE.
func ValidDocumentNumber(s string) bool {
	switch {
	case IsDNIFormat(s):
		return ValidDNI(s)
	case IsNIEFormat(s):
		return ValidNIE(s)
	}
	return false
}
