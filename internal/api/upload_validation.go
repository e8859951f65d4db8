package api

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var allowedAttachmentTypes = map[string]bool{
	"application/pdf": true,
	"application/zip": true,
	"image/png":       true,
	"image/jpeg":      true,
	"text/plain":      true,
}

// attachmentContentType sniffs the upload and reports whether it is a type
// reports may carry. Sniffing cannot tell CSV from plain text, so a .csv
// name upgrades text/plain to text/csv.
func attachmentContentType(filename string, body []byte) (string, bool) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", false
	}
	detected := http.DetectContentType(body)
	mediaType := strings.TrimSpace(strings.SplitN(detected, ";", 2)[0])
	if !allowedAttachmentTypes[mediaType] {
		return "", false
	}
	if strings.HasPrefix(mediaType, "text/") && !utf8.Valid(body) {
		return "", false
	}
	if mediaType == "text/plain" && strings.EqualFold(filepath.Ext(filename), ".csv") {
		return "text/csv", true
	}
	return mediaType, true
}
