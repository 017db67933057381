// Package tagging derives display tags for collectibles from token metadata
// attributes, free text and the cast channel.
package tagging

import (
	"fmt"
	"sort"
	"strings"
)

// MinConfidence is the bar a suggestion must clear to be shown on an item.
const MinConfidence = 60

type Suggestion struct {
	Tag        string
	Confidence int
	Evidence   map[string]any
}

// Attribute is one metadata trait.
type Attribute struct {
	Trait string
	Value any
}

func MergeSuggestions(groups ...[]Suggestion) []Suggestion {
	byTag := make(map[string]Suggestion)

	for _, group := range groups {
		for _, s := range group {
			tag := NormalizeTag(s.Tag)
			if !IsValidTag(tag) || s.Confidence <= 0 {
				continue
			}

			existing, ok := byTag[tag]
			if !ok || s.Confidence > existing.Confidence {
				s.Tag = tag
				byTag[tag] = s
				continue
			}
			if s.Evidence != nil {
				if existing.Evidence == nil {
					existing.Evidence = map[string]any{}
				}
				for k, v := range s.Evidence {
					if _, taken := existing.Evidence[k]; !taken {
						existing.Evidence[k] = v
					}
				}
				byTag[tag] = existing
			}
		}
	}

	out := make([]Suggestion, 0, len(byTag))
	for _, v := range byTag {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// keywordTags maps text tokens to taxonomy tags.
var keywordTags = []struct {
	tag   string
	words []string
}{
	{TagPhotography, []string{"photo", "photography", "photograph", "film", "camera", "lens", "shot"}},
	{TagGenerative, []string{"generative", "algorithmic", "procedural", "genart", "p5", "shader"}},
	{TagAbstract, []string{"abstract", "abstraction"}},
	{TagDesign, []string{"design", "designer", "character", "typography", "ui"}},
	{TagMusic, []string{"music", "song", "track", "beat", "album"}},
	{TagVideo, []string{"video", "animation", "clip", "motion"}},
	{TagMeme, []string{"meme", "memes", "lol"}},
	{TagGaming, []string{"game", "gaming", "pixel", "8bit"}},
	{TagWriting, []string{"poem", "poetry", "essay", "story", "writing"}},
	{TagArt, []string{"art", "artwork", "painting", "drawing", "illustration", "sketch"}},
}

// SuggestFromText scans titles and descriptions for taxonomy keywords.
func SuggestFromText(texts ...string) []Suggestion {
	var out []Suggestion
	for _, raw := range texts {
		tokens := tokenize(strings.ToLower(raw))
		if len(tokens) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			set[t] = struct{}{}
		}
		for _, kt := range keywordTags {
			for _, w := range kt.words {
				if _, ok := set[w]; ok {
					out = append(out, Suggestion{
						Tag:        kt.tag,
						Confidence: 65,
						Evidence: map[string]any{
							"signal": "text",
							"match":  w,
							"text":   truncate(raw, 120),
						},
					})
					break
				}
			}
		}
	}
	return out
}

// SuggestFromAttributes treats trait values as strong signals: a trait value
// naming a taxonomy tag is taken at face value, otherwise its words are
// matched like free text.
func SuggestFromAttributes(attrs []Attribute) []Suggestion {
	var out []Suggestion
	for _, a := range attrs {
		value := strings.TrimSpace(fmt.Sprint(a.Value))
		if a.Value == nil || value == "" {
			continue
		}
		trait := strings.ToLower(strings.TrimSpace(a.Trait))
		evidence := map[string]any{
			"signal": "attribute",
			"trait":  a.Trait,
			"value":  truncate(value, 120),
		}
		if tag := NormalizeTag(value); IsValidTag(tag) && !strings.HasPrefix(tag, ChannelPrefix) {
			out = append(out, Suggestion{Tag: tag, Confidence: 90, Evidence: evidence})
			continue
		}
		confidence := 75
		switch trait {
		case "medium", "category", "type", "genre", "style":
			confidence = 85
		}
		for _, s := range SuggestFromText(value) {
			s.Confidence = confidence
			s.Evidence = evidence
			out = append(out, s)
		}
	}
	return out
}

// SuggestFromChannel tags an item with its channel and, when the channel id
// is itself a taxonomy tag, with that tag too.
func SuggestFromChannel(channelID string) []Suggestion {
	id := NormalizeTag(strings.TrimPrefix(strings.TrimSpace(channelID), "/"))
	if !isSlug(id) {
		return nil
	}
	evidence := map[string]any{"signal": "channel", "channel": id}
	out := []Suggestion{{Tag: ChannelPrefix + id, Confidence: 95, Evidence: evidence}}
	if IsValidTag(id) {
		out = append(out, Suggestion{Tag: id, Confidence: 90, Evidence: evidence})
	}
	return out
}

// Tags merges every signal and returns the tag names above MinConfidence,
// strongest first.
func Tags(title, description string, attrs []Attribute, channelID string) []string {
	merged := MergeSuggestions(
		SuggestFromChannel(channelID),
		SuggestFromAttributes(attrs),
		SuggestFromText(title, description),
	)
	out := make([]string, 0, len(merged))
	for _, s := range merged {
		if s.Confidence >= MinConfidence {
			out = append(out, s.Tag)
		}
	}
	return out
}

func tokenize(value string) []string {
	var out []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out = append(out, buf.String())
		buf.Reset()
	}

	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			buf.WriteRune(r)
		case r >= '0' && r <= '9':
			buf.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 1 {
		return value[:1]
	}
	return value[:limit-1] + "…"
}
