package nutrition

import (
	"regexp"
	"strings"
)

var foodSeparator = regexp.MustCompile(`(?i),|\band\b`)

// SplitFoods breaks a spoken meal description into food names on commas and the word "and".
// When nothing usable remains the whole transcript is returned as the only item.
func SplitFoods(transcript string) []string {
	var foods []string
	for _, part := range foodSeparator.Split(transcript, -1) {
		part = strings.Trim(part, " \t\r\n.!?;:")
		if part != "" {
			foods = append(foods, part)
		}
	}
	if len(foods) == 0 {
		return []string{strings.TrimSpace(transcript)}
	}
	return foods
}
