package pipeline

import (
	"path"
	"strings"
)

// Denylist matches asset filenames that must not be staged, typically
// telemetry beacons embedded in the document. Patterns are exact filenames
// or suffix wildcards ("*.beacon.js").
type Denylist struct {
	exact    map[string]struct{}
	suffixes []string
}

// NewDenylist builds a matcher from the configured patterns. It returns
// nil when no usable pattern remains, and a nil Denylist blocks nothing.
func NewDenylist(patterns []string) *Denylist {
	d := &Denylist{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		if strings.HasPrefix(value, "*") {
			suffix := strings.TrimPrefix(value, "*")
			if suffix != "" {
				d.addSuffix(suffix)
			}
			continue
		}
		d.exact[value] = struct{}{}
	}
	if len(d.exact) == 0 && len(d.suffixes) == 0 {
		return nil
	}
	return d
}

func (d *Denylist) addSuffix(suffix string) {
	for _, existing := range d.suffixes {
		if existing == suffix {
			return
		}
	}
	d.suffixes = append(d.suffixes, suffix)
}

// Blocked reports whether the reference's filename matches the deny-list.
func (d *Denylist) Blocked(ref string) bool {
	if d == nil {
		return false
	}
	name := strings.ToLower(path.Base(strings.TrimSpace(ref)))
	if name == "" || name == "." {
		return false
	}
	if _, ok := d.exact[name]; ok {
		return true
	}
	for _, suffix := range d.suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
