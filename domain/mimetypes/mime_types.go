package mimetypes

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Normalize canonicalizes a client declared mime type.
// Parameters are dropped and aliases known to the detection tree
// are mapped onto their canonical form.
// Unparsable values are kept as sent: attachments are stored verbatim.
func Normalize(declared *string) *string {
	if declared == nil {
		return nil
	}
	raw := strings.TrimSpace(*declared)
	if raw == "" {
		return nil
	}
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return declared
	}
	mt = strings.ToLower(mt)
	if known := mimetype.Lookup(mt); known != nil {
		canonical, _, _ := strings.Cut(known.String(), ";")
		return &canonical
	}
	return &mt
}
