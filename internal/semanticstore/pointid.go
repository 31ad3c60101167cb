package semanticstore

import "strings"

// ParsePointID recovers the chunk id embedded in a point id produced by
// PointID. Query-time code needs this to go from a vector hit back to the
// symbolstore row without a second index: the format is stable and owned
// here, so nothing outside this package should split on ':' itself.
func ParsePointID(pointID string) (fileID, chunkID, contentHash string, ok bool) {
	parts := strings.SplitN(pointID, ":", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
