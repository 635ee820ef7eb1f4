package utils

import (
	"os"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// QuitChan receives the signals that stop the server.
var QuitChan = make(chan os.Signal, 1)

// maxFileNameLen is in bytes, the common file system limit.
const maxFileNameLen = 255

// SanitizeFileName reduces a caller supplied name to a safe base name.
// Directory parts are dropped, as are control characters. An empty result
// means the name is unusable.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == ".." || name == "/" {
		return ""
	}

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	for len(name) > maxFileNameLen {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return strings.TrimSpace(name)
}
