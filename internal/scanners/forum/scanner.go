package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/polyforge/polyforge/internal/cryptoutil"
	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// archiveExtensions are the only attachments that make a topic a design
// (spec §4.12: forum designs are "topics with archive attachments").
var archiveExtensions = []string{".zip", ".rar", ".7z", ".tar", ".gz"}

var titlePrefixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\[.*?\]\s*`),
	regexp.MustCompile(`(?i)^RE:\s*`),
	regexp.MustCompile(`(?i)^FW:\s*`),
}

func isArchive(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func cleanTitle(title string) string {
	cleaned := title
	for _, p := range titlePrefixes {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return title
	}
	return cleaned
}

// Scanner implements interfaces.Scanner for PHPBB import sources.
type Scanner struct {
	credentials interfaces.CredentialsRepository
	box         *cryptoutil.Box
	maxTopics   int
}

// NewScanner builds a Scanner. maxTopics <= 0 scans every topic in the forum.
func NewScanner(credentials interfaces.CredentialsRepository, box *cryptoutil.Box, maxTopics int) *Scanner {
	return &Scanner{credentials: credentials, box: box, maxTopics: maxTopics}
}

func (s *Scanner) loadCredentials(ctx context.Context, refID string) (*types.PHPBBCredentialPayload, *types.Credential, error) {
	cred, err := s.credentials.Get(ctx, types.CredentialPHPBB, refID)
	if err != nil {
		return nil, nil, polyerrors.NewAuth(fmt.Errorf("forum: load credentials %s: %w", refID, err))
	}
	plaintext, err := s.box.Open(cred.CiphertextB64)
	if err != nil {
		return nil, nil, polyerrors.NewAuth(fmt.Errorf("forum: decrypt credentials %s: %w", refID, err))
	}
	var payload types.PHPBBCredentialPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, nil, polyerrors.NewAuth(fmt.Errorf("forum: unmarshal credentials %s: %w", refID, err))
	}
	return &payload, cred, nil
}

func (s *Scanner) saveSession(ctx context.Context, cred *types.Credential, payload *types.PHPBBCredentialPayload, cookies map[string]string) error {
	payload.Cookies = cookies
	payload.SessionExpiry = time.Now().Add(24 * time.Hour)
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ciphertext, err := s.box.Seal(plaintext)
	if err != nil {
		return err
	}
	cred.CiphertextB64 = ciphertext
	return s.credentials.Upsert(ctx, cred)
}

// Scan implements interfaces.Scanner: log in (or resume a stored session),
// walk every topic of source.ForumID, and surface the ones carrying an
// archive attachment as detected designs.
func (s *Scanner) Scan(ctx context.Context, source *types.ImportSource) ([]interfaces.DetectedDesign, error) {
	if source.ForumBaseURL == "" || source.ForumID == "" || source.CredentialsRef == "" {
		return nil, nil
	}

	payload, cred, err := s.loadCredentials(ctx, source.CredentialsRef)
	if err != nil {
		return nil, err
	}

	client, err := NewClient(source.ForumBaseURL)
	if err != nil {
		return nil, err
	}
	if len(payload.Cookies) > 0 {
		if err := client.LoadCookies(payload.Cookies); err != nil {
			return nil, err
		}
	}
	if err := client.EnsureSession(ctx, payload.Username, payload.Password); err != nil {
		return nil, err
	}
	if err := s.saveSession(ctx, cred, payload, client.Cookies()); err != nil {
		logger.Warn(ctx, "forum_session_persist_failed", "error", err.Error())
	}

	topics, err := client.ListAllTopics(ctx, source.ForumID, s.maxTopics)
	if err != nil {
		return nil, err
	}

	var designs []interfaces.DetectedDesign
	for _, topic := range topics {
		attachments, _, err := client.GetTopicContent(ctx, source.ForumID, topic.TopicID)
		if err != nil {
			logger.Warn(ctx, "forum_topic_scan_failed", "topic_id", topic.TopicID, "error", err.Error())
			continue
		}

		var archiveFiles []string
		var totalSize int64
		for _, a := range attachments {
			if !isArchive(a.Filename) {
				continue
			}
			archiveFiles = append(archiveFiles, a.Filename)
			totalSize += a.SizeBytes
		}
		if len(archiveFiles) == 0 {
			continue
		}

		designs = append(designs, interfaces.DetectedDesign{
			RelativePath: fmt.Sprintf("%s/%d", topic.ForumID, topic.TopicID),
			Title:        cleanTitle(topic.Title),
			Designer:     topic.Author,
			SizeBytes:    totalSize,
			ArchiveFiles: archiveFiles,
		})
	}

	logger.Info(ctx, "forum_scanned", "forum_id", source.ForumID, "topics_scanned", len(topics), "designs_found", len(designs))
	return designs, nil
}
