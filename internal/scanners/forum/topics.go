package forum

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
)

// Topic is one row found on a viewforum.php listing page.
type Topic struct {
	TopicID  int
	ForumID  string
	Title    string
	Author   string
	URL      string
}

var topicIDPattern = regexp.MustCompile(`t=(\d+)`)
var startPattern = regexp.MustCompile(`start=(\d+)`)

// ListTopicsPage fetches one page of /viewforum.php?f=forumID[&start=start]
// and returns the topics it found plus the next page's start offset, or -1
// if this was the last page.
func (c *Client) ListTopicsPage(ctx context.Context, forumID string, start int) ([]Topic, int, error) {
	path := fmt.Sprintf("viewforum.php?f=%s", forumID)
	if start > 0 {
		path += fmt.Sprintf("&start=%d", start)
	}
	doc, status, err := c.get(ctx, path)
	if err != nil {
		return nil, -1, err
	}
	if status != http.StatusOK {
		return nil, -1, polyerrors.NewTransient(fmt.Errorf("forum: viewforum returned status %d", status))
	}

	var topics []Topic
	rows := doc.Find("li.row, li[class*=topic], tr[class*=topic]")
	if rows.Length() == 0 {
		doc.Find("a.topictitle").Each(func(_ int, link *goquery.Selection) {
			href, _ := link.Attr("href")
			m := topicIDPattern.FindStringSubmatch(href)
			if m == nil {
				return
			}
			id, _ := strconv.Atoi(m[1])
			topics = append(topics, Topic{
				TopicID: id,
				ForumID: forumID,
				Title:   strings.TrimSpace(link.Text()),
				URL:     href,
			})
		})
	} else {
		rows.Each(func(_ int, row *goquery.Selection) {
			class, _ := row.Attr("class")
			if strings.Contains(class, "announce") || strings.Contains(class, "global") {
				return
			}
			link := row.Find("a.topictitle").First()
			if link.Length() == 0 {
				link = row.Find(`a[href*="viewtopic.php"]`).First()
			}
			if link.Length() == 0 {
				return
			}
			href, _ := link.Attr("href")
			m := topicIDPattern.FindStringSubmatch(href)
			if m == nil {
				return
			}
			id, _ := strconv.Atoi(m[1])
			author := strings.TrimSpace(row.Find(`a[class*=username], a[class*=author]`).First().Text())
			topics = append(topics, Topic{
				TopicID: id,
				ForumID: forumID,
				Title:   strings.TrimSpace(link.Text()),
				Author:  author,
				URL:     href,
			})
		})
	}

	nextStart := -1
	doc.Find("div.pagination a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		m := startPattern.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		val, _ := strconv.Atoi(m[1])
		if val > start {
			nextStart = val
			return false
		}
		return true
	})

	return topics, nextStart, nil
}

// ListAllTopics paginates ListTopicsPage until exhausted or maxTopics is hit.
// maxTopics <= 0 means no limit.
func (c *Client) ListAllTopics(ctx context.Context, forumID string, maxTopics int) ([]Topic, error) {
	var all []Topic
	start := 0
	for {
		page, next, err := c.ListTopicsPage(ctx, forumID, start)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if maxTopics > 0 && len(all) >= maxTopics {
			return all[:maxTopics], nil
		}
		if next < 0 {
			break
		}
		start = next
	}
	return all, nil
}
