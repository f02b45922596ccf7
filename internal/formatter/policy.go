package formatter

import "fmt"

// MatchMode controls how banned phrases are matched
type MatchMode string

const (
	MatchFold  MatchMode = "fold"  // case-insensitive, anywhere
	MatchExact MatchMode = "exact" // case-sensitive, anywhere
	// MatchWord is case-sensitive anywhere plus case-insensitive on whole
	// words, so "Breaking News" goes but "useful" keeps its "use"
	MatchWord MatchMode = "word"
)

// Policy holds every vocabulary and limit the formatter applies
type Policy struct {
	BannedPhrases []string
	BannedMatch   MatchMode
	AllowedEmojis []string

	MaxLength      int    // platform limit in characters
	TruncateLength int    // cut point used once MaxLength is exceeded
	Ellipsis       string // appended after a cut
	MaxHashtags    int

	// Revision-dependent behaviours, off by default
	SkipHashtagsIfTrendMentioned bool
	MinViableLength              int
	Placeholder                  string
}

// DefaultBannedPhrases returns the phrases stripped from every post
func DefaultBannedPhrases() []string {
	return []string{
		"blown away", "breaking news", "exposed", "leaked",
		"factoryBuilder", "ViralForChange",
		"Join me", "Check out", "Purchase", "Click here",
		"The tweet starts with", "Generate a tweet",
		"Write a tweet", "Example", "Test",
		"Question", "To craft", "Did you know",
		"Remember to", "Avoid", "Keep it", "Use",
		"Write", "Tip", "Fact", "Resource",
		"in order to", "please note", "ensure that",
		"focus on", "emphasize", "highlight", "strive for",
		"create a", "craft a", "compose a", "put together",
		"Dont miss", "subscribe", "Watch out",
		"Your post should", "Heres an", "alternative version",
		"similarly", "likewise", "conversely", "however",
		"moreover", "furthermore", "nevertheless",
		"in addition", "additionally", "further",
	}
}

// DefaultAllowedEmojis returns the emoji glyphs that survive filtering
func DefaultAllowedEmojis() []string {
	return []string{"📊", "🔍", "💡", "🌍", "💬", "🌟", "🚀"}
}

// DefaultPolicy returns the production formatting policy
func DefaultPolicy() Policy {
	return Policy{
		BannedPhrases:  DefaultBannedPhrases(),
		BannedMatch:    MatchWord,
		AllowedEmojis:  DefaultAllowedEmojis(),
		MaxLength:      280,
		TruncateLength: 250,
		Ellipsis:       "…",
		MaxHashtags:    3,
		Placeholder:    "No viable content generated",
	}
}

// Validate checks limits and enumerations
func (p Policy) Validate() error {
	switch p.BannedMatch {
	case MatchFold, MatchExact, MatchWord:
	default:
		return fmt.Errorf("unknown banned phrase match mode %q", p.BannedMatch)
	}
	if p.MaxLength <= 0 {
		return fmt.Errorf("max length must be positive, got %d", p.MaxLength)
	}
	if p.TruncateLength <= 0 || p.TruncateLength+len([]rune(p.Ellipsis)) > p.MaxLength {
		return fmt.Errorf("truncate length %d plus ellipsis must fit in max length %d", p.TruncateLength, p.MaxLength)
	}
	if p.MaxHashtags < 0 {
		return fmt.Errorf("max hashtags must not be negative, got %d", p.MaxHashtags)
	}
	if p.MinViableLength < 0 {
		return fmt.Errorf("min viable length must not be negative, got %d", p.MinViableLength)
	}
	if p.MinViableLength > 0 && len([]rune(p.Placeholder)) > p.MaxLength {
		return fmt.Errorf("placeholder is longer than max length")
	}
	return nil
}
