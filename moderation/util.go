package moderation

// storage truncation limits, counted in runes
const (
	maxContentLen   = 1000
	maxUserAgentLen = 500
)

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
