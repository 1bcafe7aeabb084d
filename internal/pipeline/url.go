package pipeline

import (
	"fmt"
	"path"
	"strings"

	"github.com/edupack/concord-stager/internal/hash/sha256"
)

// JoinRef joins a base URL (scheme://host) with a reference path, keeping
// the reference's own encoding intact.
func JoinRef(baseURL, ref string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(ref, "/")
}

// RelPath converts an asset reference into the staging-relative path it
// must be written to, mirroring the remote layout. It rejects references
// that would escape the staging directory.
func RelPath(ref string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(ref, "./"), "/")
	if trimmed == "" {
		return "", fmt.Errorf("empty asset reference")
	}
	cleaned := path.Clean(trimmed)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("asset reference %q escapes the staging directory", ref)
	}
	return cleaned, nil
}

// SourceID derives the stable identifier for an entry from its catalog id
// and resolved configuration path. Re-runs of the same entry produce the
// same id.
func SourceID(entryID, configPath string) string {
	digest, err := sha256.New().Hash([]byte(configPath))
	if err != nil || len(digest) < 12 {
		return entryID
	}
	return entryID + "-" + digest[:12]
}
