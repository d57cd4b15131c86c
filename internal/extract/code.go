package extract

import (
	"regexp"
	"strings"

	"github.com/LeventeLantos/sms-webhook/internal/model"
)

// Keyword anchored patterns go first, then bare runs from longest to shortest.
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)code[\s:.#-]*(\d{4,8})\b`),
	regexp.MustCompile(`(?i)verification[\s:.#-]*(\d{4,8})\b`),
	regexp.MustCompile(`\b(\d{6})\b`),
	regexp.MustCompile(`\b(\d{5})\b`),
	regexp.MustCompile(`\b(\d{4})\b`),
}

func ExtractCode(text string) *string {
	for _, p := range codePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			code := m[1]
			return &code
		}
	}
	return nil
}

type platformKeywords struct {
	platform model.Platform
	keywords []string
}

// first match wins
var platformOrder = []platformKeywords{
	{model.Instagram, []string{"instagram", "ig"}},
	{model.TikTok, []string{"tiktok", "tik tok"}},
	{model.YouTube, []string{"youtube", "google"}},
	{model.Twitter, []string{"twitter", "x.com"}},
}

func DetectPlatform(text string) model.Platform {
	lower := strings.ToLower(text)
	for _, p := range platformOrder {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return p.platform
			}
		}
	}
	return model.Unknown
}
