package pipeline

import "strings"

// LicenseCode extracts the license string for an entry. The catalog feed
// rarely carries a usable code, so the common result is LicenseUnknown;
// that is the expected steady state, not a lookup failure.
func LicenseCode(entry CatalogEntry) string {
	if entry.LicenseInfo == nil {
		return LicenseUnknown
	}
	code := strings.TrimSpace(entry.LicenseInfo.Code)
	if code == "" {
		return LicenseUnknown
	}
	return code
}
