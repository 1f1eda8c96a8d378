package callmebot

import "strings"

// NormalizeContact canonicalizes a target: bare usernames gain their leading
// "@"; phone numbers keep their "+". Whitespace is trimmed. Only all-letter
// strings or strings containing an underscore count as bare usernames; a
// digit-leading mix like "123abc" is left alone for validation to reject.
func NormalizeContact(target string) string {
	target = strings.TrimSpace(target)
	if target == "" || strings.HasPrefix(target, "@") || strings.HasPrefix(target, "+") {
		return target
	}
	if isAllLetters(target) || strings.ContainsRune(target, '_') {
		return "@" + target
	}
	return target
}

// ValidateContact does the format-only check of a contact: a username is "@"
// plus 3..32 letters, digits or underscores; a phone number is "+" plus 7..15
// digits. No network is involved; the front-end runs this at settings-write
// time.
func ValidateContact(target string) (ok bool, reason string) {
	target = strings.TrimSpace(target)
	if target == "" {
		return false, "contact cannot be empty"
	}

	switch {
	case strings.HasPrefix(target, "@"):
		name := target[1:]
		if len(name) < 3 {
			return false, "username too short (minimum 3 characters)"
		}
		if len(name) > 32 {
			return false, "username too long (maximum 32 characters)"
		}
		if !isUsernameBody(name) {
			return false, "username can only contain letters, digits and underscores"
		}
		return true, ""

	case strings.HasPrefix(target, "+"):
		digits := target[1:]
		if !isAllDigits(digits) {
			return false, "phone number can only contain digits after +"
		}
		if len(digits) < 7 || len(digits) > 15 {
			return false, "phone number must be 7-15 digits"
		}
		return true, ""

	case isAllDigits(target):
		return false, "phone numbers must start with + (e.g. +6591234567)"

	default:
		return false, "usernames must start with @ (e.g. @yourname)"
	}
}

func isUsernameBody(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

func isAllLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
