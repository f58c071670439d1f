package http

import (
	"net/http"
	"strings"
)

// writeETag sets a strong ETag derived from a report fingerprint.
// It answers 304 Not Modified and returns true when the client already
// holds that version.
func writeETag(w http.ResponseWriter, r *http.Request, fingerprint string) bool {
	return setETag(w, r, fingerprint, false)
}

// writeWeakETag is writeETag for bodies that carry per-build fields such as
// generated_at, which differ between builds of the same source version.
func writeWeakETag(w http.ResponseWriter, r *http.Request, fingerprint string) bool {
	return setETag(w, r, fingerprint, true)
}

func setETag(w http.ResponseWriter, r *http.Request, fingerprint string, weak bool) bool {
	if fingerprint == "" {
		return false
	}
	etag := `"` + fingerprint + `"`
	if weak {
		etag = "W/" + etag
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
