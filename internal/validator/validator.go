package validator

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"mia/apps/backend/internal/catalog"
)

// NameSource lists the live catalog. catalog.Store implementations satisfy it.
type NameSource interface {
	ListAllActiveNames(ctx context.Context) ([]catalog.NameRef, error)
}

// Recorder observes the outcome of every validated mention.
type Recorder interface {
	ObserveMention(outcome string)
}

const (
	OutcomeExact    = "exact"
	OutcomeFuzzy    = "fuzzy"
	OutcomeStripped = "stripped"
)

type Correction struct {
	From  string
	To    string
	Score float64
}

type Result struct {
	Text        string
	Corrections []Correction
	Stripped    []string
}

type Validator struct {
	names    NameSource
	recorder Recorder
	logger   *zap.Logger
}

func New(names NameSource, recorder Recorder, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{names: names, recorder: recorder, logger: logger}
}

// Validate checks every product mention against the whole active catalog.
// Known names are rewritten to their canonical spelling, close ones to the
// best match, and the rest are stripped. Link URLs always end up pointing at
// the catalog URL. Without a readable catalog the text is returned as is.
func (v *Validator) Validate(ctx context.Context, text string, recommended []catalog.Product) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Text: text}
	}
	refs, err := v.names.ListAllActiveNames(ctx)
	if err != nil {
		v.logger.Warn("product name validation skipped", zap.Error(err))
		return Result{Text: text}
	}
	if len(refs) == 0 {
		v.logger.Warn("no products available for name validation")
		return Result{Text: text}
	}
	return v.apply(text, refs, recommended)
}

func (v *Validator) apply(text string, refs []catalog.NameRef, recommended []catalog.Product) Result {
	byLower := make(map[string]catalog.NameRef, len(refs))
	for _, ref := range refs {
		key := strings.ToLower(ref.Name)
		if _, dup := byLower[key]; !dup {
			byLower[key] = ref
		}
	}

	res := Result{Text: text}
	validated := make(map[string]struct{})
	for _, mention := range ExtractMentions(text) {
		if ref, ok := byLower[strings.ToLower(mention)]; ok {
			v.observe(OutcomeExact)
			validated[strings.ToLower(ref.Name)] = struct{}{}
			if ref.Name != mention {
				res.Text = replaceMention(res.Text, mention, ref.Name, refs)
				res.Corrections = append(res.Corrections, Correction{From: mention, To: ref.Name, Score: 1})
				v.logger.Info("corrected product name", zap.String("from", mention), zap.String("to", ref.Name))
			}
			continue
		}

		if best, score, ok := bestMatch(mention, refs); ok {
			v.observe(OutcomeFuzzy)
			validated[strings.ToLower(best.Name)] = struct{}{}
			res.Text = replaceMention(res.Text, mention, best.Name, refs)
			res.Corrections = append(res.Corrections, Correction{From: mention, To: best.Name, Score: score})
			v.logger.Info("fuzzy matched product name",
				zap.String("from", mention), zap.String("to", best.Name), zap.Float64("score", score))
			continue
		}

		v.observe(OutcomeStripped)
		res.Stripped = append(res.Stripped, mention)
		v.logger.Warn("removed product mention not in catalog", zap.String("mention", mention))
	}
	// Stripping waits for every pass so a line led by a validated product
	// survives losing a bad link or bold span further along.
	for _, mention := range res.Stripped {
		res.Text = stripMention(res.Text, mention, validated)
	}

	res.Text = rewriteLinks(res.Text, byLower, recommended)
	res.Text = tidy(res.Text)
	if len(res.Stripped) > 0 {
		v.logger.Warn("removed invalid product mentions from reply",
			zap.Strings("mentions", res.Stripped), zap.Int("response_length", len(text)))
	}
	return res
}

func (v *Validator) observe(outcome string) {
	if v.recorder != nil {
		v.recorder.ObserveMention(outcome)
	}
}

// bestMatch returns the first catalog name with the highest score above the
// threshold.
func bestMatch(mention string, refs []catalog.NameRef) (catalog.NameRef, float64, bool) {
	var best catalog.NameRef
	bestScore := 0.0
	found := false
	for _, ref := range refs {
		score := Similarity(mention, ref.Name)
		if score > FuzzyThreshold && score > bestScore {
			best, bestScore, found = ref, score, true
		}
	}
	return best, bestScore, found
}

type span struct{ start, end int }

// replaceMention rewrites occurrences of mention to canonical, leaving alone
// any occurrence that already sits inside a longer catalog name. Without that
// a mention that prefixes its own canonical name would grow the suffix twice.
func replaceMention(text, mention, canonical string, refs []catalog.NameRef) string {
	var protected []span
	for _, ref := range refs {
		if len(ref.Name) <= len(mention) || !strings.Contains(ref.Name, mention) {
			continue
		}
		for from := 0; ; {
			idx := strings.Index(text[from:], ref.Name)
			if idx < 0 {
				break
			}
			start := from + idx
			protected = append(protected, span{start: start, end: start + len(ref.Name)})
			from = start + len(ref.Name)
		}
	}

	var b strings.Builder
	last := 0
	for from := 0; ; {
		idx := strings.Index(text[from:], mention)
		if idx < 0 {
			break
		}
		start := from + idx
		end := start + len(mention)
		from = end
		if covered(protected, start, end) {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(canonical)
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

func covered(spans []span, start, end int) bool {
	for _, s := range spans {
		if s.start <= start && end <= s.end {
			return true
		}
	}
	return false
}

var listItemPattern = regexp.MustCompile(`^\s*(?:\d+\.|[-*•])\s`)

// stripMention drops list lines naming the mention, removes links to it and
// takes the emphasis off any remaining bold occurrence. A numbered line whose
// leading product is in validated keeps its place.
func stripMention(text, mention string, validated map[string]struct{}) string {
	lowerMention := strings.ToLower(mention)
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if listItemPattern.MatchString(line) && strings.Contains(strings.ToLower(line), lowerMention) &&
			!ledByValidated(line, validated) {
			continue
		}
		kept = append(kept, line)
	}
	text = strings.Join(kept, "\n")

	quoted := regexp.QuoteMeta(mention)
	text = regexp.MustCompile(`(?i)\[`+quoted+`\]\([^)]+\)`).ReplaceAllString(text, "")
	text = regexp.MustCompile(`(?i)\*\*(`+quoted+`)\*\*`).ReplaceAllString(text, "$1")
	return text
}

func ledByValidated(line string, validated map[string]struct{}) bool {
	match := numberedPattern.FindStringSubmatch(line)
	if match == nil {
		return false
	}
	lead := numberedLead(match[1])
	if lead == "" {
		lead = linkLead(match[1])
	}
	_, ok := validated[strings.ToLower(lead)]
	return ok
}

func rewriteLinks(text string, byLower map[string]catalog.NameRef, recommended []catalog.Product) string {
	recommendedURL := make(map[string]string, len(recommended))
	for _, p := range recommended {
		recommendedURL[strings.ToLower(p.Name)] = p.ProductURL
	}
	return linkPattern.ReplaceAllStringFunc(text, func(link string) string {
		parts := linkPattern.FindStringSubmatch(link)
		label := parts[1]
		key := strings.ToLower(strings.TrimSpace(label))
		url := ""
		if ref, ok := byLower[key]; ok {
			url = ref.URL
		}
		if url == "" {
			url = recommendedURL[key]
		}
		if url == "" {
			return link
		}
		return "[" + label + "](" + url + ")"
	})
}

var blankRuns = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)

func tidy(text string) string {
	return strings.TrimSpace(blankRuns.ReplaceAllString(text, "\n\n"))
}
