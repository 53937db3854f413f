package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
)

// GenerateETag generates an ETag for the current state of a section.
// Format: "<section>-<first 16 hex chars of sha256(current)>"
func GenerateETag(snap domain.SectionSnapshot) string {
	data, err := json.Marshal(snap.Current)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf(`"%s-%s"`, snap.Name, hex.EncodeToString(sum[:8]))
}

// SetETagHeader sets the ETag header on the response.
func SetETagHeader(w http.ResponseWriter, snap domain.SectionSnapshot) {
	if etag := GenerateETag(snap); etag != "" {
		w.Header().Set("ETag", etag)
	}
}

// CheckIfMatch checks if the If-Match header matches the current ETag.
// Returns true if:
//   - No If-Match header is present (ETag checking is optional)
//   - The If-Match header matches the current ETag
//
// Returns false if the If-Match header is present but doesn't match.
func CheckIfMatch(r *http.Request, snap domain.SectionSnapshot) bool {
	ifMatch := r.Header.Get("If-Match")
	if ifMatch == "" || ifMatch == "*" {
		return true
	}
	return ifMatch == GenerateETag(snap)
}

// RespondPreconditionFailed writes a 412 Precondition Failed response.
func RespondPreconditionFailed(w http.ResponseWriter, snap domain.SectionSnapshot) {
	respondStandardError(w, http.StatusPreconditionFailed, domain.ErrCodePreconditionFailed,
		"section has been modified", "", map[string]any{
			"currentETag": GenerateETag(snap),
		})
}
