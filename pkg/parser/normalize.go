package parser

import "strings"

// Normalize converts an arbitrary skill name into its canonical identifier:
// lowercase, any run of non-alphanumeric characters collapsed to a single
// dash, leading and trailing dashes stripped. Normalize is idempotent.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingSep := false
	for _, r := range strings.ToLower(name) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('-')
			pendingSep = false
		}
		b.WriteRune(r)
	}

	return b.String()
}
