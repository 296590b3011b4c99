//go:build windows

package fsutil

import "strings"

// forbiddenChars lists characters the Windows filesystem rejects in a name.
const forbiddenChars = "\\/:*?\"<>|\x00"

// SanitizeName replaces characters forbidden on non-POSIX filesystems with
// "_", preserving case and not collapsing whitespace, per spec §4.3.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(forbiddenChars, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()
	if cleaned == "" {
		return "untitled"
	}
	return cleaned
}
