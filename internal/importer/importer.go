// Package importer fills the Content Store from the site's RSS/Atom feeds.
package importer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/nexus/internal/config"
	"github.com/TobiSchelling/nexus/internal/database"
	"github.com/TobiSchelling/nexus/internal/logger"
)

const userAgent = "nexus/1.0 (taxonomy importer)"

// Sink is the part of the store the importer writes to.
type Sink interface {
	UpsertItem(ctx context.Context, it database.NewItem) (int64, bool, error)
	SetItemTags(ctx context.Context, id int64, tags []string) error
}

// Result holds the counts of an import run.
type Result struct {
	Found   int
	Created int
	Updated int
	Skipped int
	Failed  int // feeds that could not be read
}

// Importer reads feeds and upserts their items by URL.
type Importer struct {
	sink         Sink
	parser       *gofeed.Parser
	client       *http.Client
	fetchContent bool
	log          *logger.Logger
}

// New creates an Importer. With fetchContent, items whose feed entry only
// carries a summary get the text extracted from their public page instead.
func New(sink Sink, timeout time.Duration, fetchContent bool, log *logger.Logger) *Importer {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent

	return &Importer{
		sink:         sink,
		parser:       parser,
		client:       client,
		fetchContent: fetchContent,
		log:          logger.OrDiscard(log),
	}
}

// ImportAll imports every feed. A feed that fails is logged and counted; the
// run continues with the next one.
func (im *Importer) ImportAll(ctx context.Context, feeds []config.Feed) *Result {
	total := &Result{}
	for _, f := range feeds {
		r, err := im.ImportFeed(ctx, f)
		if err != nil {
			im.log.Error("feed import failed", "feed", f.URL, "error", err)
			total.Failed++
			continue
		}
		total.Found += r.Found
		total.Created += r.Created
		total.Updated += r.Updated
		total.Skipped += r.Skipped
	}
	im.log.Info("import complete",
		"found", total.Found, "created", total.Created, "updated", total.Updated,
		"skipped", total.Skipped, "failed_feeds", total.Failed)
	return total
}

// ImportFeed imports one feed.
func (im *Importer) ImportFeed(ctx context.Context, f config.Feed) (*Result, error) {
	feed, err := im.parser.ParseURLWithContext(f.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", f.URL, err)
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = "post"
	}

	r := &Result{}
	for _, item := range feed.Items {
		r.Found++
		entry := parseItem(item)
		if entry == nil {
			r.Skipped++
			continue
		}

		if im.fetchContent && !entry.Full {
			if body, err := im.fetchArticle(ctx, entry.URL); err != nil {
				im.log.Warn("content fetch failed", "url", entry.URL, "error", err)
			} else if body != "" {
				entry.Content = body
			}
		}

		id, created, err := im.sink.UpsertItem(ctx, database.NewItem{
			Title:       entry.Title,
			URL:         entry.URL,
			Content:     entry.Content,
			ContentType: contentType,
		})
		if err != nil {
			return r, fmt.Errorf("storing %s: %w", entry.URL, err)
		}
		if err := im.sink.SetItemTags(ctx, id, entry.Tags); err != nil {
			return r, fmt.Errorf("tagging %s: %w", entry.URL, err)
		}
		if created {
			r.Created++
		} else {
			r.Updated++
		}
	}

	name := f.Name
	if name == "" {
		name = feed.Title
	}
	im.log.Info("feed imported", "feed", name, "found", r.Found, "created", r.Created, "updated", r.Updated)
	return r, nil
}

type feedEntry struct {
	URL     string
	Title   string
	Content string
	Full    bool // Content came from content:encoded, not the summary
	Tags    []string
}

func parseItem(item *gofeed.Item) *feedEntry {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	// Bodies keep their markup; the audit looks for links in it.
	body, full := item.Content, item.Content != ""
	if !full {
		body = item.Description
	}

	var tags []string
	for _, c := range item.Categories {
		if c = strings.TrimSpace(c); c != "" {
			tags = append(tags, c)
		}
	}

	return &feedEntry{URL: itemURL, Title: title, Content: body, Full: full, Tags: tags}
}
