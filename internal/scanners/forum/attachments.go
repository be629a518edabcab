package forum

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
)

// Attachment is one downloadable file linked from a topic (spec §4.12:
// "parse attachment ids and sizes from human-readable forms").
type Attachment struct {
	FileID      int
	Filename    string
	SizeBytes   int64
	SizeDisplay string
	DownloadURL string
}

// Image is a preview candidate found inline in a topic's posts.
type Image struct {
	URL          string
	AltText      string
	IsAttachment bool
}

var (
	attachmentIDPattern = regexp.MustCompile(`id=(\d+)`)
	sizeDisplayPattern   = regexp.MustCompile(`(?i)([\d.]+)\s*([KMGT]?I?B)`)
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

// parseSize converts a human-readable size like "35.68 MiB" to bytes, the
// way spec §4.12 requires attachment sizes to be read off the page.
func parseSize(raw string) int64 {
	m := sizeDisplayPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	unit := strings.ToUpper(m[2])
	multiplier := int64(1)
	switch unit {
	case "KB", "KIB":
		multiplier = 1024
	case "MB", "MIB":
		multiplier = 1024 * 1024
	case "GB", "GIB":
		multiplier = 1024 * 1024 * 1024
	case "TB", "TIB":
		multiplier = 1024 * 1024 * 1024 * 1024
	}
	return int64(value * float64(multiplier))
}

func (c *Client) resolve(href string) string {
	base, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// GetTopicContent fetches a topic's pages (following pagination up to a
// safety limit) and extracts both attachments and preview images in a
// single pass (spec §4.12: "in a single page-fetch extract both archive
// attachments and preview images").
func (c *Client) GetTopicContent(ctx context.Context, forumID string, topicID int) ([]Attachment, []Image, error) {
	const maxPages = 100

	topicPath := fmt.Sprintf("viewtopic.php?f=%s&t=%d", forumID, topicID)

	var attachments []Attachment
	var images []Image
	seenAttachment := map[int]bool{}
	seenImage := map[string]bool{}

	currentPath := topicPath
	firstPage := true
	for page := 0; currentPath != "" && page < maxPages; page++ {
		doc, status, err := c.get(ctx, currentPath)
		if err != nil {
			return nil, nil, err
		}
		if status != http.StatusOK {
			return nil, nil, polyerrors.NewTransient(fmt.Errorf("forum: viewtopic returned status %d", status))
		}

		doc.Find(`div[class*=attach], div[class*=file], div[class*=download]`).Each(func(_ int, div *goquery.Selection) {
			div.Find(`a[href*="download/file.php"]`).Each(func(_ int, link *goquery.Selection) {
				href, _ := link.Attr("href")
				m := attachmentIDPattern.FindStringSubmatch(href)
				if m == nil {
					return
				}
				fileID, _ := strconv.Atoi(m[1])
				if seenAttachment[fileID] {
					return
				}

				filename := strings.TrimSpace(link.Text())
				lower := strings.ToLower(filename)
				if filename == "" || strings.HasPrefix(lower, "download") || strings.HasPrefix(lower, "click") {
					if title, ok := link.Attr("title"); ok && title != "" {
						filename = title
					} else if span := div.Find("span.filename").First(); span.Length() > 0 {
						filename = strings.TrimSpace(span.Text())
					}
				}
				if filename == "" {
					filename = fmt.Sprintf("attachment_%d", fileID)
				}

				sizeDisplay := strings.TrimSpace(sizeDisplayPattern.FindString(div.Text()))
				seenAttachment[fileID] = true
				attachments = append(attachments, Attachment{
					FileID:      fileID,
					Filename:    filename,
					SizeBytes:   parseSize(sizeDisplay),
					SizeDisplay: sizeDisplay,
					DownloadURL: c.resolve(href),
				})
			})
		})

		if firstPage {
			doc.Find("div.content").Each(func(_ int, content *goquery.Selection) {
				content.Find("img").Each(func(_ int, img *goquery.Selection) {
					src, ok := img.Attr("src")
					if !ok || src == "" {
						return
					}
					imgURL := c.resolve(src)
					lowerURL := strings.ToLower(imgURL)
					if strings.Contains(lowerURL, "smilies") || strings.Contains(lowerURL, "smiley") ||
						strings.Contains(lowerURL, "avatar") || strings.Contains(lowerURL, "icon") ||
						strings.Contains(lowerURL, "rank") {
						return
					}
					if seenImage[imgURL] {
						return
					}

					isAttachment := strings.Contains(imgURL, "download/file.php")
					isImageExt := false
					if u, err := url.Parse(imgURL); err == nil {
						for ext := range imageExtensions {
							if strings.HasSuffix(strings.ToLower(u.Path), ext) {
								isImageExt = true
								break
							}
						}
					}
					if !isImageExt && !isAttachment && !strings.Contains(imgURL, "mode=view") {
						return
					}

					seenImage[imgURL] = true
					alt, _ := img.Attr("alt")
					images = append(images, Image{URL: imgURL, AltText: alt, IsAttachment: isAttachment})
				})
			})

			doc.Find(`a[href*="download/file.php"][href*="mode=view"]`).Each(func(_ int, link *goquery.Selection) {
				href, _ := link.Attr("href")
				imgURL := c.resolve(href)
				if seenImage[imgURL] {
					return
				}
				seenImage[imgURL] = true
				images = append(images, Image{URL: imgURL, IsAttachment: true})
			})
		}

		nextHref := ""
		doc.Find("div.pagination a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			text := strings.ToLower(strings.TrimSpace(a.Text()))
			class, _ := a.Attr("class")
			if strings.Contains(class, "arrow") && (strings.Contains(text, "next") || strings.Contains(text, "»")) {
				nextHref, _ = a.Attr("href")
				return false
			}
			return true
		})
		if nextHref != "" {
			currentPath = nextHref
		} else {
			currentPath = ""
		}
		firstPage = false
	}

	return attachments, images, nil
}
