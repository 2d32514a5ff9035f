// Package validator keeps generated replies honest about the catalog: every
// product the reply names must exist, with its canonical spelling and URL.
package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	linkPattern     = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	boldPattern     = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	numberedPattern = regexp.MustCompile(`(?m)^\s*\d+\.\s+(.+)$`)
	leadBold        = regexp.MustCompile(`^\*\*([^*]+)\*\*`)
	leadLink        = regexp.MustCompile(`^\[([^\]]+)\]\(`)
	leadStop        = regexp.MustCompile(`\s+[-–—]\s|:|,\s`)
)

const minMentionRunes = 4

// ExtractLinkMentions returns the text of every markdown link.
func ExtractLinkMentions(text string) []string {
	return collect(linkPattern, text, nil)
}

// ExtractBoldMentions returns every **bold** span.
func ExtractBoldMentions(text string) []string {
	return collect(boldPattern, text, nil)
}

// ExtractNumberedMentions returns the leading text of numbered list items.
// An item opening with a bold span yields that span. Otherwise the text runs
// up to a spaced dash, a colon or a comma followed by a space, so names like
// "Tri-Act" or "1,5 kg" stay whole. Items that start with a link are left to
// the link pass.
func ExtractNumberedMentions(text string) []string {
	return collect(numberedPattern, text, numberedLead)
}

func numberedLead(item string) string {
	item = strings.TrimSpace(item)
	if strings.HasPrefix(item, "[") {
		return ""
	}
	if m := leadBold.FindStringSubmatch(item); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := leadStop.FindStringIndex(item); loc != nil {
		item = item[:loc[0]]
	}
	if strings.Contains(item, "](") {
		return ""
	}
	return strings.TrimSpace(strings.Trim(item, "*_ "))
}

func linkLead(item string) string {
	if m := leadLink.FindStringSubmatch(strings.TrimSpace(item)); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ExtractMentions runs the link, bold and numbered passes in that order and
// de-duplicates the result, keeping first occurrences.
func ExtractMentions(text string) []string {
	var mentions []string
	seen := make(map[string]struct{})
	for _, pass := range [][]string{ExtractLinkMentions(text), ExtractBoldMentions(text), ExtractNumberedMentions(text)} {
		for _, mention := range pass {
			if _, dup := seen[mention]; dup {
				continue
			}
			seen[mention] = struct{}{}
			mentions = append(mentions, mention)
		}
	}
	return mentions
}

func collect(pattern *regexp.Regexp, text string, clean func(string) string) []string {
	var out []string
	for _, match := range pattern.FindAllStringSubmatch(text, -1) {
		mention := strings.TrimSpace(match[1])
		if clean != nil {
			mention = clean(mention)
		}
		if utf8.RuneCountInString(mention) < minMentionRunes {
			continue
		}
		out = append(out, mention)
	}
	return out
}
