package features

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"montage/internal/textutil"
	"montage/internal/timeline"
)

const minBriefRunes = 3

const (
	numberExpr  = `(\d+(?:\.\d+)?)`
	secondsExpr = `\s*-?\s*(?:s|secs?|seconds?)\b`
	minutesExpr = `\s*-?\s*(?:m|mins?|minutes?)\b`
)

var (
	compositePattern = regexp.MustCompile(`\b(\d+)` + `\s*(?:m|mins?|minutes?)\s*(?:and\s+)?` + numberExpr + secondsExpr)
	minutesPattern   = regexp.MustCompile(`\b` + numberExpr + minutesExpr)
	secondsPattern   = regexp.MustCompile(`\b` + numberExpr + secondsExpr)

	absRangePattern   = regexp.MustCompile(`\b(?:from\s+)?` + numberExpr + `(?:\s*(?:s|secs?|seconds?))?\s*(?:-|–|to|until)\s*` + numberExpr + secondsExpr)
	firstRangePattern = regexp.MustCompile(`\bfirst\s+` + numberExpr + secondsExpr)
	lastRangePattern  = regexp.MustCompile(`\blast\s+` + numberExpr + secondsExpr)
	openRangePattern  = regexp.MustCompile(`\b(?:from|after|starting at|starting from)\s+(?:second\s+` + numberExpr + `\b|` + numberExpr + secondsExpr + `)`)

	effectLeadPattern  = regexp.MustCompile(`\b(fade(?:[- ]?(?:in|out))?|blur|zoom|glow|spin|rotation|rotate)\s+(?:for|over|lasting)\s+` + numberExpr + secondsExpr)
	effectTrailPattern = regexp.MustCompile(`\b` + numberExpr + `\s*-?\s*(?:s|sec|second)s?[- ](fade(?:[- ]?(?:in|out))?|blur|zoom|glow|spin|rotation)\b`)

	quoteSpan = regexp.MustCompile(`"[^"]*"|“[^”]*”|‘[^’]*’|「[^」]*」`)
)

// Extract parses a brief into Features. Ambiguous input resolves to
// defaults; input shorter than three non-space characters or without any
// letter fails with a *timeline.ValidationError.
func Extract(text string) (Features, error) {
	trimmed := strings.TrimSpace(text)
	if err := checkBrief(trimmed); err != nil {
		return Features{}, err
	}
	whole := normalize(trimmed)

	f := Features{
		Text:       trimmed,
		Rhythm:     matchRhythm(whole),
		Theme:      matchTheme(whole),
		Style:      matchStyle(whole),
		Transition: matchTransition(whole),
		Music:      musicPattern.MatchString(whole),
	}

	var segments []Segment
	for _, sentence := range splitSentences(trimmed) {
		if !hasLetter(sentence) {
			continue
		}
		segments = append(segments, analyzeSentence(len(segments), sentence))
	}

	total, stated := totalDuration(whole)
	if !stated {
		total = DefaultDuration
		for _, seg := range segments {
			if seg.Range != nil && seg.Range.Kind == RangeAbsolute && seg.Range.End > total {
				total = seg.Range.End
			}
		}
	}
	f.Duration = total
	f.DurationStated = stated
	f.Segments, f.Duration = placeSegments(segments, total)
	return f, nil
}

func checkBrief(text string) error {
	count := 0
	letter := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		count++
		if unicode.IsLetter(r) {
			letter = true
		}
	}
	switch {
	case count < minBriefRunes:
		return &timeline.ValidationError{Field: "brief", Reason: "brief is too short to describe a video"}
	case !letter:
		return &timeline.ValidationError{Field: "brief", Reason: "brief contains no words"}
	}
	return nil
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// normalize folds case, spells out number words as digits and collapses
// whitespace. Matching always happens on the normalized form.
func normalize(s string) string {
	out := textutil.Fold(s)
	for _, nw := range numberWords {
		out = nw.word.ReplaceAllString(out, nw.value)
	}
	return textutil.CollapseSpace(out)
}

// splitSentences breaks text on terminal punctuation, semicolons and
// newlines. A period between two digits is a decimal point, not a break.
func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	flush := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end + 1
	}
	for i, r := range runes {
		switch r {
		case '.':
			if i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
				continue
			}
			flush(i)
		case '!', '?', ';', '\n', '。', '！', '？', '；':
			flush(i)
		}
	}
	if start < len(runes) {
		flush(len(runes))
	}
	return out
}

func matchRhythm(text string) Rhythm {
	for _, entry := range rhythmTable {
		if entry.pattern.MatchString(text) {
			return entry.rhythm
		}
	}
	return DefaultRhythm
}

func matchTheme(text string) *ColorTheme {
	for _, entry := range themeTable {
		if entry.pattern.MatchString(text) {
			theme := entry.theme
			return &theme
		}
	}
	return nil
}

func matchStyle(text string) string {
	for _, entry := range styleTable {
		if entry.pattern.MatchString(text) {
			return entry.name
		}
	}
	return ""
}

func matchTransition(text string) string {
	for _, entry := range transitionTable {
		if entry.pattern.MatchString(text) {
			return entry.id
		}
	}
	return ""
}

// totalDuration applies composite, then minutes, then seconds, after time
// ranges and effect durations have been blanked out.
func totalDuration(text string) (float64, bool) {
	masked := mask(text, absRangePattern, firstRangePattern, lastRangePattern, openRangePattern, effectLeadPattern, effectTrailPattern)
	if m := compositePattern.FindStringSubmatch(masked); m != nil {
		minutes := parseNumber(m[1])
		seconds := parseNumber(m[2])
		if total := minutes*60 + seconds; total > 0 {
			return total, true
		}
	}
	if m := minutesPattern.FindStringSubmatch(masked); m != nil {
		if total := parseNumber(m[1]) * 60; total > 0 {
			return total, true
		}
	}
	if m := secondsPattern.FindStringSubmatch(masked); m != nil {
		if total := parseNumber(m[1]); total > 0 {
			return total, true
		}
	}
	return 0, false
}

func analyzeSentence(index int, sentence string) Segment {
	text := normalize(sentence)
	seg := Segment{Index: index, Text: sentence, Range: matchRange(text)}

	// Quoted subtitle text must not trigger keywords.
	scan := mask(text, quoteSpan)
	scan = mask(scan, transitionPatterns()...)

	type hit struct {
		pos int
		ids []string
	}
	var hits []hit
	for _, m := range fadePattern.FindAllStringSubmatchIndex(scan, -1) {
		hits = append(hits, hit{pos: m[0], ids: fadeIDs(scan, m)})
	}
	if loc := subtitlePattern.FindStringIndex(scan); loc != nil {
		hits = append(hits, hit{pos: loc[0], ids: []string{FilterSubtitle}})
		seg.Subtitle = true
	}
	for _, entry := range filterTable {
		if loc := entry.pattern.FindStringIndex(scan); loc != nil {
			hits = append(hits, hit{pos: loc[0], ids: []string{entry.id}})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	seen := make(map[string]bool)
	for _, h := range hits {
		for _, id := range h.ids {
			if !seen[id] {
				seen[id] = true
				seg.Effects = append(seg.Effects, id)
			}
		}
	}

	seg.Position = matchPosition(scan)
	seg.EffectDuration = matchEffectDuration(scan)
	return seg
}

func transitionPatterns() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(transitionTable))
	for i, entry := range transitionTable {
		out[i] = entry.pattern
	}
	return out
}

func fadeIDs(text string, m []int) []string {
	var ids []string
	for g := 1; g <= 2; g++ {
		if m[2*g] < 0 {
			continue
		}
		switch text[m[2*g]:m[2*g+1]] {
		case "in":
			ids = append(ids, FilterFadeIn)
		case "out":
			ids = append(ids, FilterFadeOut)
		}
	}
	if len(ids) == 0 {
		ids = []string{FilterFadeIn, FilterFadeOut}
	}
	return ids
}

func matchRange(text string) *TimeRange {
	if m := absRangePattern.FindStringSubmatch(text); m != nil {
		start, end := parseNumber(m[1]), parseNumber(m[2])
		if end > start {
			return &TimeRange{Kind: RangeAbsolute, Start: start, End: end}
		}
	}
	if m := firstRangePattern.FindStringSubmatch(text); m != nil {
		if n := parseNumber(m[1]); n > 0 {
			return &TimeRange{Kind: RangeAbsolute, Start: 0, End: n}
		}
	}
	if m := lastRangePattern.FindStringSubmatch(text); m != nil {
		if n := parseNumber(m[1]); n > 0 {
			return &TimeRange{Kind: RangeFromEnd, Length: n}
		}
	}
	if m := openRangePattern.FindStringSubmatch(text); m != nil {
		value := m[1]
		if value == "" {
			value = m[2]
		}
		return &TimeRange{Kind: RangeOpen, Start: parseNumber(value)}
	}
	return nil
}

func matchPosition(text string) string {
	for _, m := range positionPattern.FindAllStringSubmatch(text, -1) {
		var parts []string
		for _, g := range m[1:] {
			if g != "" {
				parts = append(parts, g)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "-")
		}
	}
	return ""
}

// matchEffectDuration reads phrases like "fade in for 2 seconds" or
// "3-second blur". One phrase applies to every effect of the sentence;
// several phrases bind to their own effects.
func matchEffectDuration(text string) Duration {
	type binding struct {
		keyword string
		value   float64
	}
	var found []binding
	for _, m := range effectLeadPattern.FindAllStringSubmatch(text, -1) {
		found = append(found, binding{keyword: m[1], value: parseNumber(m[2])})
	}
	for _, m := range effectTrailPattern.FindAllStringSubmatch(text, -1) {
		found = append(found, binding{keyword: m[2], value: parseNumber(m[1])})
	}
	switch len(found) {
	case 0:
		return nil
	case 1:
		if found[0].value <= 0 {
			return nil
		}
		return Uniform(found[0].value)
	}
	perKey := PerKey{}
	for _, b := range found {
		for _, id := range effectIDs(b.keyword) {
			perKey[id] = b.value
		}
	}
	return perKey
}

func effectIDs(keyword string) []string {
	switch {
	case strings.HasPrefix(keyword, "fade"):
		switch {
		case strings.HasSuffix(keyword, "in"):
			return []string{FilterFadeIn}
		case strings.HasSuffix(keyword, "out"):
			return []string{FilterFadeOut}
		}
		return []string{FilterFadeIn, FilterFadeOut}
	case keyword == "spin" || strings.HasPrefix(keyword, "rotat"):
		return []string{FilterRotate}
	default:
		return []string{keyword}
	}
}

// mask blanks every match of the patterns with spaces, keeping offsets.
func mask(text string, patterns ...*regexp.Regexp) string {
	out := []byte(text)
	for _, p := range patterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			for i := loc[0]; i < loc[1]; i++ {
				out[i] = ' '
			}
		}
	}
	return string(out)
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
