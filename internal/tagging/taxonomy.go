package tagging

import (
	"sort"
	"strings"
)

const (
	TagArt         = "art"
	TagPhotography = "photography"
	TagAbstract    = "abstract"
	TagGenerative  = "generative"
	TagDesign      = "design"
	TagMusic       = "music"
	TagVideo       = "video"
	TagMeme        = "meme"
	TagGaming      = "gaming"
	TagWriting     = "writing"

	// ChannelPrefix namespaces tags derived from a cast's channel id.
	ChannelPrefix = "channel:"
)

var allTags = []string{
	TagArt,
	TagPhotography,
	TagAbstract,
	TagGenerative,
	TagDesign,
	TagMusic,
	TagVideo,
	TagMeme,
	TagGaming,
	TagWriting,
}

func AllTags() []string {
	out := make([]string, len(allTags))
	copy(out, allTags)
	return out
}

// IsValidTag accepts taxonomy tags and channel tags with a slug id.
func IsValidTag(tag string) bool {
	tag = NormalizeTag(tag)
	if id, ok := strings.CutPrefix(tag, ChannelPrefix); ok {
		return isSlug(id)
	}
	for _, t := range allTags {
		if t == tag {
			return true
		}
	}
	return false
}

func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func NormalizeTagList(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, raw := range tags {
		t := NormalizeTag(raw)
		if t == "" || !IsValidTag(t) {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func isSlug(value string) bool {
	if value == "" || len(value) > 64 {
		return false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
