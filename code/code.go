// Package code implements the International Morse code table: the
// character <-> dot/dash representation lookup used by the rest of the
// library to encode outgoing text and decode incoming representations.
package code

import (
	"errors"
	"strings"
)

const (
	// Dot and Dash are the two symbols a representation is built from.
	Dot  byte = '.'
	Dash byte = '-'

	// MaxReprLength is the longest representation in the table (7
	// elements, reached by '$').
	MaxReprLength = 7

	// MinReprHash and MaxReprHash bound the hash of any valid
	// representation (see Hash). Taken from the original C
	// implementation's CW_DATA_MIN/MAX_REPRESENTATION_HASH: a
	// one-symbol representation hashes to 2 or 3, a seven-symbol one
	// tops out at 255.
	MinReprHash = 2
	MaxReprHash = 255
)

var (
	// ErrUnknownChar is returned when a character has no representation.
	ErrUnknownChar = errors.New("code: character not in table")
	// ErrUnknownRepr names the case of a representation that matches no
	// character. ReprToChar and IsValidRepr report it as a false result
	// and do not return this error.
	ErrUnknownRepr = errors.New("code: representation not in table")
	// ErrInvalidRepr names the case of a malformed representation
	// (empty, too long, or containing a symbol other than '.'/'-' ).
	// ReprToChar, IsValidRepr and Hash report it as a false result and
	// do not return this error.
	ErrInvalidRepr = errors.New("code: malformed representation")
)

// table lists every character this library knows, upper-cased, paired
// with its dot/dash representation. It mirrors the International Morse
// alphabet plus digits, common punctuation and the procedural signals.
var table = []struct {
	char byte
	repr string
}{
	{'A', ".-"}, {'B', "-..."}, {'C', "-.-."}, {'D', "-.."}, {'E', "."},
	{'F', "..-."}, {'G', "--."}, {'H', "...."}, {'I', ".."}, {'J', ".---"},
	{'K', "-.-"}, {'L', ".-.."}, {'M', "--"}, {'N', "-."}, {'O', "---"},
	{'P', ".--."}, {'Q', "--.-"}, {'R', ".-."}, {'S', "..."}, {'T', "-"},
	{'U', "..-"}, {'V', "...-"}, {'W', ".--"}, {'X', "-..-"}, {'Y', "-.--"},
	{'Z', "--.."},

	{'0', "-----"}, {'1', ".----"}, {'2', "..---"}, {'3', "...--"},
	{'4', "....-"}, {'5', "....."}, {'6', "-...."}, {'7', "--..."},
	{'8', "---.."}, {'9', "----."},

	{'.', ".-.-.-"}, {',', "--..--"}, {'?', "..--.."}, {'\'', ".----."},
	{'!', "-.-.--"}, {'/', "-..-."}, {'(', "-.--."}, {')', "-.--.-"},
	{'&', ".-..."}, {':', "---..."}, {';', "-.-.-."}, {'=', "-...-"},
	{'+', ".-.-."}, {'-', "-....-"}, {'_', "..--.-"}, {'"', ".-..-."},
	{'$', "...-..-"}, {'@', ".--.-."},
}

var (
	charToRepr  = make(map[byte]string, len(table))
	hashToChar  [MaxReprHash + 1]byte
	allChars    []byte
	maxReprSeen int
)

func init() {
	for _, e := range table {
		charToRepr[e.char] = e.repr
		allChars = append(allChars, e.char)
		if len(e.repr) > maxReprSeen {
			maxReprSeen = len(e.repr)
		}
		if h, ok := Hash(e.repr); ok {
			hashToChar[h] = e.char
		}
	}
}

// Hash packs a representation into its direct-lookup key: start from a
// sentinel value of 1, then for each symbol (read left to right) shift
// left and OR in 1 for a dash, 0 for a dot. The leading 1 bit survives
// any number of leading dots, so representations of different lengths
// never collide. Returns false if r is empty or longer than
// MaxReprLength or contains a symbol other than Dot/Dash.
func Hash(r string) (byte, bool) {
	if len(r) == 0 || len(r) > MaxReprLength {
		return 0, false
	}
	hash := byte(1)
	for i := 0; i < len(r); i++ {
		switch r[i] {
		case Dot:
			hash <<= 1
		case Dash:
			hash = (hash << 1) | 1
		default:
			return 0, false
		}
	}
	return hash, true
}

// CharToRepr returns the dot/dash representation of c, case-insensitive.
func CharToRepr(c rune) (string, bool) {
	b, ok := toTableByte(c)
	if !ok {
		return "", false
	}
	repr, ok := charToRepr[b]
	return repr, ok
}

// ReprToChar resolves a representation to its character using the
// direct hash table: O(1), and faster than a linear scan of the table
// (see code_test.go for the measured ratio).
func ReprToChar(r string) (rune, bool) {
	if !validSymbols(r) {
		return 0, false
	}
	h, ok := Hash(r)
	if !ok {
		return 0, false
	}
	c := hashToChar[h]
	if c == 0 {
		return 0, false
	}
	return rune(c), true
}

// reprToCharLinear resolves a representation the naive way, by scanning
// the whole table. It exists only so tests can compare its cost against
// ReprToChar's direct lookup.
func reprToCharLinear(r string) (rune, bool) {
	for _, e := range table {
		if e.repr == r {
			return rune(e.char), true
		}
	}
	return 0, false
}

// IsValidRepr reports whether r is 1..MaxReprLength symbols from
// {Dot, Dash} AND corresponds to a known character.
func IsValidRepr(r string) bool {
	_, ok := ReprToChar(r)
	return ok
}

// IsValidChar reports whether c has a known representation.
func IsValidChar(c rune) bool {
	_, ok := CharToRepr(c)
	return ok
}

// ListCharacters returns every character this table knows, in table
// order. The returned slice is a fresh copy; changing it does not
// affect the table.
func ListCharacters() []rune {
	out := make([]rune, len(allChars))
	for i, b := range allChars {
		out[i] = rune(b)
	}
	return out
}

// Count returns the number of characters in the table.
func Count() int { return len(table) }

// MaxReprLengthInTable returns the length of the longest representation
// actually present in the table (normally MaxReprLength, but kept
// separate so a shorter/longer table never silently disagrees with the
// constant).
func MaxReprLengthInTable() int { return maxReprSeen }

func validSymbols(r string) bool {
	if len(r) == 0 || len(r) > MaxReprLength {
		return false
	}
	return strings.IndexFunc(r, func(c rune) bool {
		return c != rune(Dot) && c != rune(Dash)
	}) == -1
}

func toTableByte(c rune) (byte, bool) {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 0 || c > 255 {
		return 0, false
	}
	return byte(c), true
}
