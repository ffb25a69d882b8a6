package progression

import (
	"strings"

	"github.com/gosimple/slug"
)

// NormalizeCommunityID turns a free-form community name into its stable id.
// "Blue Team Berlin" and "blue-team-berlin" resolve to the same community.
func NormalizeCommunityID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return slug.Make(raw)
}
