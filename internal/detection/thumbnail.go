package detection

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// ThumbnailDataURI converts a raw image payload into a data URI suitable
// for an <img> src attribute. It is a pure function of its input: an empty
// payload yields an empty string, and content sniffing falls back to
// image/jpeg for unrecognized bytes.
func ThumbnailDataURI(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	mime := http.DetectContentType(payload)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
}
