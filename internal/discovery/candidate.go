package discovery

import (
	"strings"

	"github.com/polyforge/polyforge/internal/types"
)

// Candidate is a channel reference found in monitored content, prior to
// being tracked as a DiscoveredChannel.
type Candidate struct {
	PeerID     string
	Username   string
	InviteHash string
	Title      string
	IsPrivate  bool
	SourceType types.DiscoverySourceType
}

func (c Candidate) empty() bool {
	return c.PeerID == "" && c.Username == "" && c.InviteHash == ""
}

// ForwardMetadata is the subset of a message's forward-origin information
// a chat client can supply.
type ForwardMetadata struct {
	PeerID   string
	Title    string
	Username string
}

// DetectFromForward builds a Candidate from a message's forward-origin
// metadata, or nil if fwd carries no usable channel identity.
func DetectFromForward(fwd *ForwardMetadata) *Candidate {
	if fwd == nil || fwd.PeerID == "" {
		return nil
	}
	return &Candidate{
		PeerID:     fwd.PeerID,
		Title:      fwd.Title,
		Username:   fwd.Username,
		IsPrivate:  fwd.Username == "",
		SourceType: types.DiscoveryForward,
	}
}

// DetectLinks extracts t.me/ links from text, tagging each Candidate with
// sourceType (DiscoveryCaptionLink or DiscoveryTextLink depending on which
// field the text came from).
func DetectLinks(text string, sourceType types.DiscoverySourceType) []Candidate {
	if text == "" {
		return nil
	}
	var results []Candidate
	seen := map[string]bool{}
	for _, m := range tmeLinkPattern.FindAllStringSubmatch(text, -1) {
		identifier := m[1]
		if seen[identifier] {
			continue
		}
		seen[identifier] = true

		switch {
		case len(identifier) > 0 && identifier[0] == '+':
			hash := identifier[1:]
			if hasBotSuffix(hash) {
				continue
			}
			results = append(results, Candidate{InviteHash: hash, IsPrivate: true, SourceType: sourceType})
		case len(identifier) > 9 && identifier[:9] == "joinchat/":
			hash := identifier[9:]
			if hasBotSuffix(hash) {
				continue
			}
			results = append(results, Candidate{InviteHash: hash, IsPrivate: true, SourceType: sourceType})
		default:
			if hasBotSuffix(identifier) {
				continue
			}
			results = append(results, Candidate{Username: identifier, IsPrivate: false, SourceType: sourceType})
		}
	}
	return results
}

// DetectMentions extracts @username mentions from text.
func DetectMentions(text string) []Candidate {
	if text == "" {
		return nil
	}
	var results []Candidate
	seen := map[string]bool{}
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		username := m[1]
		key := strings.ToLower(username)
		if seen[key] {
			continue
		}
		seen[key] = true
		if hasBotSuffix(username) {
			continue
		}
		results = append(results, Candidate{
			Username:   username,
			IsPrivate:  false,
			SourceType: types.DiscoveryMention,
		})
	}
	return results
}
