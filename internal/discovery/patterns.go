// Package discovery detects channels referenced by monitored content —
// forwards, t.me/ links, and @mentions (spec §4.11) — and tracks them as
// DiscoveredChannel rows for later promotion to a monitored Channel.
package discovery

import "regexp"

var (
	tmeLinkPattern = regexp.MustCompile(`(?i)(?:https?://)?t\.me/(\+[\w-]+|joinchat/[\w-]+|[\w]{5,32})`)
	mentionPattern = regexp.MustCompile(`@([a-zA-Z][a-zA-Z0-9_]{4,31})`)
)

var botSuffixes = []string{"bot", "Bot", "BOT", "_bot", "_Bot"}

func hasBotSuffix(identifier string) bool {
	for _, suffix := range botSuffixes {
		if len(identifier) >= len(suffix) && identifier[len(identifier)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}
