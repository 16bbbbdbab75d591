package crawler

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode returns content as UTF-8. A UTF-8 byte order mark is stripped; content that is not
// valid UTF-8 is read as Windows-1252, which accepts every byte sequence (Latin-1 is a subset
// for printable characters).
func Decode(content []byte) ([]byte, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if utf8.Valid(content) {
		return content, nil
	}
	return charmap.Windows1252.NewDecoder().Bytes(content)
}
