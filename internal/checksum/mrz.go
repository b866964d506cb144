package checksum

var mrzWeights = [3]int{7, 3, 1}

// mrzValue returns the ICAO value of c, or -1 when c is not an MRZ character.
func mrzValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	case c == '<':
		return 0
	}
	return -1
}

// MRZCheckDigit computes the weighted 7-3-1 check digit of s.
// It returns -1 if s contains a character outside [A-Z0-9<].
func MRZCheckDigit(s string) int {
	sum := 0
	for i := 0; i < len(s); i++ {
		v := mrzValue(s[i])
		if v < 0 {
			return -1
		}
		sum += v * mrzWeights[i%3]
	}
	return sum % 10
}

// ValidMRZField reports whether check is the check digit of field.
// A '<' filler check is accepted only for an all-filler field.
func ValidMRZField(field string, check byte) bool {
	if check == '<' {
		for i := 0; i < len(field); i++ {
			if field[i] != '<' {
				return false
			}
		}
		return true
	}
	if check < '0' || check > '9' {
		return false
	}
	d := MRZCheckDigit(field)
	return d >= 0 && d == int(check-'0')
}

// ValidMRZComposite validates s, a field immediately followed by its check digit,
// i.e. (weighted sum of the field - digit) mod 10 == 0.
func ValidMRZComposite(s string) bool {
	if len(s) == 0 {
		return false
	}
	return ValidMRZField(s[:len(s)-1], s[len(s)-1])
}

// ValidTD3 validates the check digits of the second line of a passport MRZ:
// document number, birth date, expiry date and the final composite digit.
// The optional personal number digit is validated only when present.
func ValidTD3(line2 string) bool {
	if len(line2) < 44 {
		return false
	}
	if !ValidMRZField(line2[0:9], line2[9]) ||
		!ValidMRZField(line2[13:19], line2[19]) ||
		!ValidMRZField(line2[21:27], line2[27]) {
		return false
	}
	if line2[42] != '<' && !ValidMRZField(line2[28:42], line2[42]) {
		return false
	}
	composite := line2[0:10] + line2[13:20] + line2[21:43]
	return ValidMRZField(composite, line2[43])
}

// ValidTD1 validates the check digits of an ID-card MRZ given its first two lines.
func ValidTD1(line1, line2 string) bool {
	if len(line1) < 30 || len(line2) < 30 {
		return false
	}
	if !ValidMRZField(line1[5:14], line1[14]) ||
		!ValidMRZField(line2[0:6], line2[6]) ||
		!ValidMRZField(line2[8:14], line2[14]) {
		return false
	}
	composite := line1[5:30] + line2[0:7] + line2[8:15] + line2[18:29]
	return ValidMRZField(composite, line2[29])
}
