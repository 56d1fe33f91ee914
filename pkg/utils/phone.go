package utils

import "strings"

// SanitizePhone strips formatting characters a caller may include in a
// destination ("+1 (555) 000-1") while leaving full JIDs untouched.
func SanitizePhone(phone *string) {
	if phone == nil {
		return
	}
	p := strings.TrimSpace(*phone)
	if strings.Contains(p, "@") {
		*phone = p
		return
	}
	*phone = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, p)
}

// PhoneFromJID returns the user part of a JID ("5550001@s.whatsapp.net" -> "5550001").
func PhoneFromJID(jid string) string {
	user, _, _ := strings.Cut(jid, "@")
	user, _, _ = strings.Cut(user, ":")
	return user
}

// DestinationKey maps every spelling of a user destination ("5550001",
// "5550001@s.whatsapp.net", "5550001:3@s.whatsapp.net") onto the bare number.
// Other JIDs (groups, lids) are returned as given. Input must be sanitised.
func DestinationKey(destination string) string {
	if !strings.Contains(destination, "@") {
		return destination
	}
	if _, server, _ := strings.Cut(destination, "@"); server == "s.whatsapp.net" {
		return PhoneFromJID(destination)
	}
	return destination
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
