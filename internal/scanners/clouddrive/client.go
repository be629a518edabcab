// Package clouddrive implements the cloud-drive scanner of spec §4.12:
// recursive folder listing with batching and a metadata cache, change-token
// incremental sync, OAuth token refresh, and 429 backoff.
package clouddrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/polyforge/polyforge/internal/logger"
	polyerrors "github.com/polyforge/polyforge/internal/errors"
)

const driveAPIBase = "https://www.googleapis.com/drive/v3"

// DriveFile is one file or folder entry as returned by the Drive API.
type DriveFile struct {
	ID           string
	Name         string
	MimeType     string
	Size         int64
	ModifiedTime time.Time
	Parents      []string
}

const folderMimeType = "application/vnd.google-apps.folder"

// IsFolder reports whether f is itself a folder.
func (f DriveFile) IsFolder() bool {
	return f.MimeType == folderMimeType
}

// DriveClient is the subset of the Drive REST surface the scanner needs
// (spec §4.12/§6: files.get, files.list, changes.getStartPageToken,
// changes.list).
type DriveClient interface {
	GetFolder(ctx context.Context, folderID string) (*DriveFile, error)
	ListFolderPage(ctx context.Context, folderID, pageToken string) (files []DriveFile, nextPageToken string, err error)
	GetStartPageToken(ctx context.Context) (string, error)
	ListChanges(ctx context.Context, pageToken string) (changedFolderIDs []string, newStartToken string, err error)
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// HTTPDriveClient is the real DriveClient, authenticated through an
// oauth2.TokenSource that refreshes against oauth2.googleapis.com/token.
type HTTPDriveClient struct {
	httpClient *http.Client
}

// NewHTTPDriveClient builds a client using ts for bearer-token auth.
func NewHTTPDriveClient(ctx context.Context, ts oauth2.TokenSource) *HTTPDriveClient {
	return &HTTPDriveClient{httpClient: oauth2.NewClient(ctx, ts)}
}

// MaxRetries and the backoff formula implement spec §4.12's rate-limit
// handling: 429 -> exponential backoff min(2*2^attempt, 300)s +/- 30% jitter,
// up to 5 retries.
const (
	MaxRetries    = 5
	maxBackoffSec = 300
)

func backoffDuration(attempt int) time.Duration {
	base := float64(2 * (1 << attempt))
	if base > maxBackoffSec {
		base = maxBackoffSec
	}
	jitter := base * 0.3 * (2*rand.Float64() - 1)
	d := base + jitter
	if d < 0 {
		d = 0
	}
	return time.Duration(d * float64(time.Second))
}

// withRetry runs do, retrying on HTTP 429 per backoffDuration, up to
// MaxRetries attempts.
func withRetry(ctx context.Context, do func() (*http.Response, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		resp, err := do()
		if err != nil {
			lastErr = err
			break
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		resp.Body.Close()
		if attempt == MaxRetries {
			return nil, polyerrors.NewTransient(fmt.Errorf("drive api rate limited after %d retries", attempt))
		}
		wait := backoffDuration(attempt)
		logger.Warn(ctx, "drive_api_rate_limited", "attempt", attempt, "wait_seconds", wait.Seconds())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, polyerrors.NewTransient(lastErr)
}

func (c *HTTPDriveClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := driveAPIBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := withRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("drive api %s: status %d: %s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

// DownloadFile streams fileID's media bytes (files.get?alt=media). The
// caller is responsible for closing the returned reader.
func (c *HTTPDriveClient) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/files/%s?alt=media&supportsAllDrives=true", driveAPIBase, fileID)
	resp, err := withRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("drive api download %s: status %d: %s", fileID, resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

func (c *HTTPDriveClient) GetFolder(ctx context.Context, folderID string) (*DriveFile, error) {
	body, err := c.get(ctx, "/files/"+folderID, url.Values{
		"fields":            {"id,name,mimeType,size,modifiedTime,parents"},
		"supportsAllDrives": {"true"},
	})
	if err != nil {
		return nil, err
	}
	var raw driveFileJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	f := raw.toDriveFile()
	return &f, nil
}

func (c *HTTPDriveClient) ListFolderPage(ctx context.Context, folderID, pageToken string) ([]DriveFile, string, error) {
	query := url.Values{
		"q":                         {fmt.Sprintf("'%s' in parents and trashed = false", folderID)},
		"fields":                    {"nextPageToken,files(id,name,mimeType,size,modifiedTime,parents)"},
		"pageSize":                  {"1000"},
		"supportsAllDrives":         {"true"},
		"includeItemsFromAllDrives": {"true"},
	}
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}
	body, err := c.get(ctx, "/files", query)
	if err != nil {
		return nil, "", err
	}
	var raw driveListJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", err
	}
	files := make([]DriveFile, 0, len(raw.Files))
	for _, f := range raw.Files {
		files = append(files, f.toDriveFile())
	}
	return files, raw.NextPageToken, nil
}

func (c *HTTPDriveClient) GetStartPageToken(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/changes/startPageToken", nil)
	if err != nil {
		return "", err
	}
	var raw struct {
		StartPageToken string `json:"startPageToken"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", err
	}
	return raw.StartPageToken, nil
}

func (c *HTTPDriveClient) ListChanges(ctx context.Context, pageToken string) ([]string, string, error) {
	query := url.Values{
		"pageToken": {pageToken},
		"fields":    {"newStartPageToken,nextPageToken,changes(fileId,file(parents))"},
	}
	body, err := c.get(ctx, "/changes", query)
	if err != nil {
		return nil, "", err
	}
	var raw struct {
		NewStartPageToken string `json:"newStartPageToken"`
		NextPageToken     string `json:"nextPageToken"`
		Changes           []struct {
			FileID string `json:"fileId"`
			File   struct {
				Parents []string `json:"parents"`
			} `json:"file"`
		} `json:"changes"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", err
	}
	var folderIDs []string
	for _, ch := range raw.Changes {
		folderIDs = append(folderIDs, ch.File.Parents...)
	}
	token := raw.NewStartPageToken
	if token == "" {
		token = raw.NextPageToken
	}
	return folderIDs, token, nil
}

type driveFileJSON struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MimeType     string   `json:"mimeType"`
	Size         string   `json:"size"`
	ModifiedTime string   `json:"modifiedTime"`
	Parents      []string `json:"parents"`
}

func (r driveFileJSON) toDriveFile() DriveFile {
	var size int64
	fmt.Sscanf(r.Size, "%d", &size)
	modified, _ := time.Parse(time.RFC3339, r.ModifiedTime)
	return DriveFile{
		ID:           r.ID,
		Name:         r.Name,
		MimeType:     r.MimeType,
		Size:         size,
		ModifiedTime: modified,
		Parents:      r.Parents,
	}
}

type driveListJSON struct {
	NextPageToken string          `json:"nextPageToken"`
	Files         []driveFileJSON `json:"files"`
}
