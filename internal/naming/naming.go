package naming

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	SourceMetadata    = "metadata"
	SourceDisplayName = "display_name"
	SourceUsername    = "username"
	SourceCastText    = "cast_text"
	SourceToken       = "token"
	SourceAddress     = "address"

	minDisplayScore = 70
	maxTitleRunes   = 60
)

type Candidate struct {
	Name   string
	Source string
}

type normalizedCandidate struct {
	Source      string
	StoredName  string
	DisplayName string
	Score       int
}

// NormalizeCandidate cleans a raw label and scores it for display.
func NormalizeCandidate(source, rawName string) (storedName string, displayName string, score int, ok bool) {
	source = strings.ToLower(strings.TrimSpace(source))
	name := strings.Join(strings.Fields(rawName), " ")
	if name == "" {
		return "", "", 0, false
	}

	stored := name
	display := name
	switch source {
	case SourceCastText:
		if i := strings.IndexAny(strings.TrimSpace(rawName), "\r\n"); i > 0 {
			display = strings.Join(strings.Fields(strings.TrimSpace(rawName)[:i]), " ")
		}
		display = truncateRunes(display, maxTitleRunes)
	case SourceUsername:
		stored = strings.ToLower(strings.TrimPrefix(name, "@"))
		display = "@" + stored
	case SourceAddress:
		stored = strings.ToLower(name)
		display = ShortAddress(stored)
	case SourceToken:
		display = "#" + strings.TrimPrefix(name, "#")
	}

	s := scoreCandidate(source, stored, display)
	if s < 0 {
		return stored, display, s, false
	}
	return stored, display, s, true
}

// ChooseBestDisplayName picks the highest scoring candidate above the
// display bar.
func ChooseBestDisplayName(candidates []Candidate) (string, bool) {
	best := normalizedCandidate{Score: -1_000_000}

	for _, c := range candidates {
		stored, display, score, ok := NormalizeCandidate(c.Source, c.Name)
		if !ok || score < minDisplayScore {
			continue
		}
		next := normalizedCandidate{
			Source:      c.Source,
			StoredName:  stored,
			DisplayName: display,
			Score:       score,
		}
		if betterCandidate(next, best) {
			best = next
		}
	}

	if best.Score < minDisplayScore || strings.TrimSpace(best.DisplayName) == "" {
		return "", false
	}
	return best.DisplayName, true
}

// Title returns the item title: metadata name, then the cast text, then the
// token number.
func Title(metadataName, castText, tokenID string) string {
	name, _ := ChooseBestDisplayName([]Candidate{
		{Name: metadataName, Source: SourceMetadata},
		{Name: castText, Source: SourceCastText},
		{Name: tokenID, Source: SourceToken},
	})
	return name
}

// ProfileLabel returns how a minter or author is shown: display name, then
// @username, then the shortened wallet address.
func ProfileLabel(displayName, username, address string) string {
	if name, ok := ChooseBestDisplayName([]Candidate{
		{Name: displayName, Source: SourceDisplayName},
		{Name: username, Source: SourceUsername},
	}); ok {
		return name
	}
	if strings.TrimSpace(address) == "" {
		return ""
	}
	return ShortAddress(strings.ToLower(strings.TrimSpace(address)))
}

func SortCandidatesForDisplay(candidates []Candidate) []Candidate {
	type scored struct {
		orig       Candidate
		normalized normalizedCandidate
		ok         bool
	}

	scoredList := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		stored, display, score, ok := NormalizeCandidate(c.Source, c.Name)
		scoredList = append(scoredList, scored{
			orig: c,
			normalized: normalizedCandidate{
				Source:      c.Source,
				StoredName:  stored,
				DisplayName: display,
				Score:       score,
			},
			ok: ok,
		})
	}

	sort.SliceStable(scoredList, func(i, j int) bool {
		ai := scoredList[i]
		aj := scoredList[j]
		if ai.ok != aj.ok {
			return ai.ok
		}
		if ai.normalized.Score != aj.normalized.Score {
			return ai.normalized.Score > aj.normalized.Score
		}
		return ai.normalized.DisplayName < aj.normalized.DisplayName
	})

	out := make([]Candidate, 0, len(scoredList))
	for _, item := range scoredList {
		out = append(out, item.orig)
	}
	return out
}

// ShortAddress renders 0x1234…abcd for long hex strings.
func ShortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}

func betterCandidate(a, b normalizedCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	// Shorter label wins a tie.
	if utf8.RuneCountInString(a.DisplayName) != utf8.RuneCountInString(b.DisplayName) {
		return utf8.RuneCountInString(a.DisplayName) < utf8.RuneCountInString(b.DisplayName)
	}
	if a.DisplayName != b.DisplayName {
		return a.DisplayName < b.DisplayName
	}
	return a.StoredName < b.StoredName
}

func scoreCandidate(source, stored, display string) int {
	normalized := strings.ToLower(stored)
	if looksGarbage(normalized) {
		return -1
	}

	base := 50
	switch source {
	case SourceMetadata:
		base = 95
	case SourceDisplayName:
		base = 92
	case SourceUsername:
		base = 88
	case SourceCastText:
		base = 80
	case SourceToken:
		base = 72
	case SourceAddress:
		base = 60
	}

	if utf8.RuneCountInString(display) < 2 {
		base -= 50
	}

	// Raw hashes make poor titles.
	if source != SourceAddress && looksHex(normalized) {
		base -= 30
	}

	if source == SourceToken && !isDigits(strings.TrimPrefix(stored, "#")) {
		base -= 20
	}

	return base
}

func looksHex(value string) bool {
	if !strings.HasPrefix(value, "0x") || len(value) < 10 {
		return false
	}
	for _, r := range value[2:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func looksGarbage(normalized string) bool {
	if normalized == "" {
		return true
	}
	switch normalized {
	case "undefined", "null", "untitled", "unknown", "n/a", "none", "[object object]":
		return true
	}
	return false
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	r := []rune(value)
	return strings.TrimSpace(string(r[:limit-1])) + "…"
}
