// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recordings

import (
	"path"
	"strings"
)

// PathMapping maps a root in the appliance's own filesystem onto the drive.
type PathMapping struct {
	ApplianceRoot string // absolute, as stored in the database
	DriveRoot     string // slash-separated, relative to the drive; "" is the drive root
}

// DefaultApplianceRoots are the mount points firmware revisions used for the
// recording drive.
var DefaultApplianceRoots = []string{"/media/tablo", "/var/media", "/mnt/storage"}

// DefaultMappings maps every default appliance root onto the drive root.
func DefaultMappings() []PathMapping {
	out := make([]PathMapping, 0, len(DefaultApplianceRoots))
	for _, r := range DefaultApplianceRoots {
		out = append(out, PathMapping{ApplianceRoot: r})
	}
	return out
}

// PathMapper resolves appliance paths to drive-relative paths
type PathMapper struct {
	mappings []PathMapping
}

// NewPathMapper creates a new PathMapper, dropping invalid mappings.
func NewPathMapper(mappings []PathMapping) *PathMapper {
	var valid []PathMapping
	for _, m := range mappings {
		if !strings.HasPrefix(m.ApplianceRoot, "/") {
			continue
		}
		applianceRoot := path.Clean(m.ApplianceRoot)
		if applianceRoot == "/" {
			continue
		}

		driveRoot := strings.Trim(path.Clean("/"+m.DriveRoot), "/")
		if strings.Contains(m.DriveRoot, "\\") || hasDotDot(m.DriveRoot) {
			continue
		}

		valid = append(valid, PathMapping{
			ApplianceRoot: applianceRoot,
			DriveRoot:     driveRoot,
		})
	}

	return &PathMapper{mappings: valid}
}

// Mappings returns the normalized mappings in use.
func (pm *PathMapper) Mappings() []PathMapping {
	return append([]PathMapping(nil), pm.mappings...)
}

// ToDrive maps an absolute appliance path to a slash-separated path relative
// to the drive root. It returns ("", false) when no mapping applies or the
// path is invalid.
//
// Longest-prefix matching keeps /media/tablo2 from matching /media/tablo.
func (pm *PathMapper) ToDrive(appliancePath string) (string, bool) {
	if strings.Contains(appliancePath, "\\") || hasDotDot(appliancePath) {
		return "", false
	}
	clean := path.Clean(appliancePath)
	if !strings.HasPrefix(clean, "/") || clean == "/" {
		return "", false
	}

	var best *PathMapping
	var bestRel string
	longestLen := 0

	for i := range pm.mappings {
		m := &pm.mappings[i]
		root := m.ApplianceRoot

		var rel string
		switch {
		case clean == root:
			rel = ""
		case strings.HasPrefix(clean, root+"/"):
			rel = strings.TrimPrefix(clean, root+"/")
		default:
			continue
		}

		if len(root) > longestLen {
			longestLen = len(root)
			best = m
			bestRel = rel
		}
	}

	if best == nil {
		return "", false
	}

	out := path.Join(best.DriveRoot, bestRel)
	if out == "" {
		out = "."
	}
	return out, true
}

func hasDotDot(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
