package ircd

import "strings"

const maxNickLength = 9

// isValidNick enforces spec.md §4.3 "Nickname validation": non-empty,
// length <= 9, characters from [A-Za-z0-9\[\]\\`_^{|}].
func isValidNick(n string) bool {
	if len(n) == 0 || len(n) > maxNickLength {
		return false
	}

	for _, ch := range n {
		if !isNickChar(ch) {
			return false
		}
	}
	return true
}

func isNickChar(ch rune) bool {
	switch {
	case ch >= 'a' && ch <= 'z':
		return true
	case ch >= 'A' && ch <= 'Z':
		return true
	case ch >= '0' && ch <= '9':
		return true
	}
	return strings.ContainsRune(`[]\`+"`"+`_^{|}`, ch)
}

// isValidChannel requires the name begin with '#' (spec.md §3 "Channel",
// §4.3 "JOIN semantics"). Channel names are case-sensitive per spec.md §3.
func isValidChannel(name string) bool {
	return len(name) > 1 && name[0] == '#'
}
