package anthropic

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/samber/lo"
)

const rateLimitHeaderPrefix = "anthropic-ratelimit-"

var rateLimitNames = []string{"requests", "tokens", "input-tokens", "output-tokens"}

// ParseRateLimits reads the anthropic-ratelimit-* headers. Limits whose
// limit header is missing are skipped.
func ParseRateLimits(header http.Header) []llm.RateLimit {
	return lo.FilterMap(rateLimitNames, func(name string, _ int) (llm.RateLimit, bool) {
		limit := header.Get(rateLimitHeaderPrefix + name + "-limit")
		if limit == "" {
			return llm.RateLimit{}, false
		}
		rl := llm.RateLimit{Name: name}
		rl.Limit, _ = strconv.Atoi(limit)
		rl.Remaining, _ = strconv.Atoi(header.Get(rateLimitHeaderPrefix + name + "-remaining"))
		if reset := header.Get(rateLimitHeaderPrefix + name + "-reset"); reset != "" {
			if t, err := time.Parse(time.RFC3339, reset); err == nil {
				rl.ResetsAt = t
			}
		}
		return rl, true
	})
}
