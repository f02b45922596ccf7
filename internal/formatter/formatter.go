package formatter

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	lineBreakAndQuoteReplacer = strings.NewReplacer(
		"\r", " ", "\n", " ",
		`"`, "", "“", "", "”", "", "'", "", "‘", "", "’", "",
	)

	urlPattern       = regexp.MustCompile(`(?i)(?:\b[a-z][a-z0-9+.\-]*://|\bwww\.)\S*`)
	shortLinkPattern = regexp.MustCompile(`(?i)\b(?:t\.co|bit\.ly|pic\.twitter\.com)/\S*`)
	yearPattern      = regexp.MustCompile(`\b20\d{2}\b`)
	hashtagPattern   = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// Formatter turns raw generated text into a publishable post.
// It does no I/O; the clock is only read for the current year.
type Formatter struct {
	policy  Policy
	now     func() time.Time
	phrases []string
	folded  []*regexp.Regexp
	words   []*regexp.Regexp
	emojis  []string
}

// New creates a formatter. A nil clock means time.Now.
func New(policy Policy, now func() time.Time) *Formatter {
	if now == nil {
		now = time.Now
	}

	f := &Formatter{policy: policy, now: now}
	for _, phrase := range policy.BannedPhrases {
		if phrase == "" {
			continue
		}
		f.phrases = append(f.phrases, phrase)
		f.folded = append(f.folded, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(phrase)))
		f.words = append(f.words, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(phrase)+`\b`))
	}

	// Longest first so multi-rune glyphs win over their prefixes
	f.emojis = append([]string(nil), policy.AllowedEmojis...)
	sort.SliceStable(f.emojis, func(i, j int) bool {
		return len(f.emojis[i]) > len(f.emojis[j])
	})

	return f
}

// Policy returns the policy the formatter was built with
func (f *Formatter) Policy() Policy {
	return f.policy
}

// Format cleans raw, appends hashtags for trend and enforces the length limit
func (f *Formatter) Format(raw, trend string) string {
	year := strconv.Itoa(f.now().Year())

	text := lineBreakAndQuoteReplacer.Replace(raw)
	text = f.removeBanned(text)
	text = urlPattern.ReplaceAllString(text, " ")
	text = shortLinkPattern.ReplaceAllString(text, " ")
	text = yearPattern.ReplaceAllString(text, year)

	extracted := hashtagPattern.FindAllString(text, -1)
	text = hashtagPattern.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "#", " ")

	if !(f.policy.SkipHashtagsIfTrendMentioned && mentions(raw, trend)) {
		if tags := f.hashtags(trend, year, extracted); len(tags) > 0 {
			text = text + " " + strings.Join(tags, " ")
		}
	}

	text = collapse(f.keepAllowedRunes(text))
	// Filtering can glue fragments back into a banned phrase
	text = collapse(f.removeBanned(text))
	text = f.Truncate(text)

	if f.policy.MinViableLength > 0 && utf8.RuneCountInString(strings.TrimSpace(text)) <= f.policy.MinViableLength {
		return f.policy.Placeholder
	}
	return text
}

// Truncate applies the policy length limit
func (f *Formatter) Truncate(s string) string {
	return Truncate(s, f.policy.MaxLength, f.policy.TruncateLength, f.policy.Ellipsis)
}

// ContainsBanned reports whether s still holds a banned phrase
func (f *Formatter) ContainsBanned(s string) bool {
	switch f.policy.BannedMatch {
	case MatchExact:
		return containsAny(s, f.phrases)
	case MatchWord:
		return containsAny(s, f.phrases) || matchesAny(s, f.words)
	default:
		return matchesAny(s, f.folded)
	}
}

// removeBanned deletes phrases until none is left, since a deletion can
// join the surrounding text into a new occurrence
func (f *Formatter) removeBanned(s string) string {
	for {
		before := s
		switch f.policy.BannedMatch {
		case MatchExact:
			s = replaceAll(s, f.phrases)
		case MatchWord:
			s = replaceAll(s, f.phrases)
			s = deleteAll(s, f.words)
		default:
			s = deleteAll(s, f.folded)
		}
		if s == before {
			return s
		}
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func replaceAll(s string, phrases []string) string {
	for _, p := range phrases {
		s = strings.ReplaceAll(s, p, "")
	}
	return s
}

func deleteAll(s string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		s = re.ReplaceAllString(s, "")
	}
	return s
}

func (f *Formatter) hashtags(trend, year string, extracted []string) []string {
	var candidates []string
	if clean := Compact(trend); clean != "" {
		candidates = append(candidates, "#"+clean, "#"+clean+year)
	}
	for _, tag := range extracted {
		if clean := Compact(tag); clean != "" {
			candidates = append(candidates, "#"+clean)
		}
	}

	seen := make(map[string]bool, len(candidates))
	var tags []string
	for _, tag := range candidates {
		if len(tags) >= f.policy.MaxHashtags {
			break
		}
		key := strings.ToLower(tag)
		if seen[key] || f.ContainsBanned(tag[1:]) {
			continue
		}
		seen[key] = true
		tags = append(tags, tag)
	}
	return tags
}

func (f *Formatter) keepAllowedRunes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		if e := f.emojiAt(s[i:]); e != "" {
			b.WriteString(e)
			i += len(e)
			continue
		}

		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '#':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
		i += size
	}
	return b.String()
}

func (f *Formatter) emojiAt(s string) string {
	for _, e := range f.emojis {
		if e != "" && strings.HasPrefix(s, e) {
			return e
		}
	}
	return ""
}

// Truncate shortens s to cutLen runes at the last word boundary and appends
// ellipsis, but only when s is longer than maxLen runes.
func Truncate(s string, maxLen, cutLen int, ellipsis string) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if cutLen <= 0 || cutLen+utf8.RuneCountInString(ellipsis) > maxLen {
		cutLen = maxLen - utf8.RuneCountInString(ellipsis)
	}
	if cutLen <= 0 {
		return string(r[:maxLen])
	}

	cut := string(r[:cutLen])
	if r[cutLen] != ' ' {
		if i := strings.LastIndex(cut, " "); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimRight(cut, " ") + ellipsis
}

// Compact drops every rune that is not a letter or digit, which is how a
// trend becomes a hashtag body
func Compact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func mentions(raw, trend string) bool {
	trend = strings.TrimSpace(trend)
	if trend == "" {
		return false
	}
	return strings.Contains(strings.ToLower(raw), strings.ToLower(trend))
}

func collapse(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}
