package resolve

import (
	"strings"
)

// Soundex returns the four-character American Soundex code of word. Only
// ASCII letters contribute; a word with none returns "".
func Soundex(word string) string {
	letters := asciiLetters(word)
	if letters == "" {
		return ""
	}

	var b strings.Builder
	b.WriteByte(letters[0])
	prev := soundexDigit(letters[0])
	for i := 1; i < len(letters) && b.Len() < 4; i++ {
		c := letters[i]
		d := soundexDigit(c)
		if d != '0' && d != prev {
			b.WriteByte(d)
		}
		// H and W do not separate letters with the same code.
		if c != 'H' && c != 'W' {
			prev = d
		}
	}
	for b.Len() < 4 {
		b.WriteByte('0')
	}
	return b.String()
}

func soundexDigit(c byte) byte {
	switch c {
	case 'B', 'F', 'P', 'V':
		return '1'
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return '2'
	case 'D', 'T':
		return '3'
	case 'L':
		return '4'
	case 'M', 'N':
		return '5'
	case 'R':
		return '6'
	default:
		return '0'
	}
}

// Metaphone returns a simplified Metaphone key of at most six characters.
// It covers the common English digraphs (PH, SH, TH, CK, GH, KN, WR) which is
// enough to catch spelling variants of brand names.
func Metaphone(word string) string {
	w := asciiLetters(word)
	if w == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(w, "KN"), strings.HasPrefix(w, "GN"), strings.HasPrefix(w, "PN"), strings.HasPrefix(w, "WR"):
		w = w[1:]
	case strings.HasPrefix(w, "X"):
		w = "S" + w[1:]
	case strings.HasPrefix(w, "WH"):
		w = "W" + w[2:]
	}

	var b strings.Builder
	var last byte
	emit := func(c byte) {
		if c != 0 && c != last {
			b.WriteByte(c)
		}
		last = c
	}

	for i := 0; i < len(w) && b.Len() < 6; i++ {
		c := w[i]
		next := byteAt(w, i+1)
		switch c {
		case 'A', 'E', 'I', 'O', 'U':
			if i == 0 {
				emit(c)
			} else {
				last = 0
			}
		case 'C':
			switch {
			case next == 'H':
				emit('X')
				i++
			case next == 'K':
				emit('K')
				i++
			case next == 'I' || next == 'E' || next == 'Y':
				emit('S')
			default:
				emit('K')
			}
		case 'D':
			if next == 'G' && isFrontVowel(byteAt(w, i+2)) {
				emit('J')
				i++
			} else {
				emit('T')
			}
		case 'G':
			switch {
			case next == 'H':
				i++
			case isFrontVowel(next):
				emit('J')
			default:
				emit('K')
			}
		case 'H':
			if isVowel(next) && !isVowel(byteAt(w, i-1)) {
				emit('H')
			}
		case 'P':
			if next == 'H' {
				emit('F')
				i++
			} else {
				emit('P')
			}
		case 'Q':
			emit('K')
		case 'S':
			if next == 'H' {
				emit('X')
				i++
			} else {
				emit('S')
			}
		case 'T':
			if next == 'H' {
				emit('0')
				i++
			} else {
				emit('T')
			}
		case 'V':
			emit('F')
		case 'W', 'Y':
			if isVowel(next) {
				emit(c)
			}
		case 'X':
			emit('K')
			emit('S')
		case 'Z':
			emit('S')
		default:
			emit(c)
		}
	}
	return b.String()
}

// PhoneticScore compares two normalized names token by token. A token pair
// matches when either its Soundex or Metaphone codes agree (digit-only tokens
// must be equal). The score is matched tokens over the longer token count.
func PhoneticScore(a, b string) float64 {
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	n := len(ta)
	if len(tb) > n {
		n = len(tb)
	}
	matched := 0
	for i := 0; i < len(ta) && i < len(tb); i++ {
		if phoneticTokenMatch(ta[i], tb[i]) {
			matched++
		}
	}
	return float64(matched) / float64(n)
}

func phoneticTokenMatch(a, b string) bool {
	if a == b {
		return true
	}
	sa, sb := Soundex(a), Soundex(b)
	if sa == "" || sb == "" {
		return false
	}
	return sa == sb || Metaphone(a) == Metaphone(b)
}

func asciiLetters(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c >= 'A' && c <= 'Z' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func byteAt(s string, i int) byte {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

func isVowel(c byte) bool {
	return c == 'A' || c == 'E' || c == 'I' || c == 'O' || c == 'U'
}

func isFrontVowel(c byte) bool {
	return c == 'E' || c == 'I' || c == 'Y'
}
