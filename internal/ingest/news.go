package ingest

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"stock-analysis-pipeline/internal/api"
	"stock-analysis-pipeline/internal/interfaces"
	"stock-analysis-pipeline/internal/logger"
	"stock-analysis-pipeline/internal/types"
)

const DefaultMaxArticles = 15

// NewsEnricher appends articles from RSS/Atom feeds that mention the ticker
// or company name. Feed failures never fail the fetch.
type NewsEnricher struct {
	next        interfaces.Ingestor
	feeds       []string
	maxArticles int
	client      *api.Client
	parser      *gofeed.Parser
	limiter     *rate.Limiter
}

var _ interfaces.Ingestor = (*NewsEnricher)(nil)

func NewNewsEnricher(next interfaces.Ingestor, feeds []string, maxArticles int) *NewsEnricher {
	if maxArticles <= 0 {
		maxArticles = DefaultMaxArticles
	}
	retry := api.DefaultRetryConfig()
	retry.MaxAttempts = 2
	retry.InitialWait = 250 * time.Millisecond
	client := api.NewClient(
		api.WithTimeout(10*time.Second),
		api.WithHeaders(api.FeedHeaders()),
		api.WithRetry(retry),
	)
	return &NewsEnricher{
		next:        next,
		feeds:       feeds,
		maxArticles: maxArticles,
		client:      client,
		parser:      gofeed.NewParser(),
		limiter:     rate.NewLimiter(rate.Limit(2), 2),
	}
}

func (n *NewsEnricher) Fetch(ctx context.Context, ticker string, periodDays int) (*types.CanonicalDataset, error) {
	ds, err := n.next.Fetch(ctx, ticker, periodDays)
	if err != nil || ds == nil || len(n.feeds) == 0 {
		return ds, err
	}
	if len(ds.News) >= n.maxArticles {
		return ds, nil
	}

	keywords := newsKeywords(ds.Meta)
	seen := make(map[string]bool, len(ds.News))
	for _, a := range ds.News {
		seen[a.URL] = true
	}

	var found []types.Article
	for _, url := range n.feeds {
		articles, err := n.fetchFeed(ctx, url)
		if err != nil {
			logger.Warn(ctx, "News feed unavailable", "feed", url, "ticker", ds.Meta.Ticker, "error", err)
			continue
		}
		for _, a := range articles {
			if a.URL != "" && seen[a.URL] {
				continue
			}
			if matchesAny(a.Title+" "+a.Summary, keywords) {
				seen[a.URL] = true
				found = append(found, a)
			}
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].PublishedAt > found[j].PublishedAt })

	room := n.maxArticles - len(ds.News)
	if len(found) > room {
		found = found[:room]
	}
	ds.News = append(ds.News, found...)
	logger.Debug(ctx, "News enrichment complete", "ticker", ds.Meta.Ticker, "added", len(found))
	return ds, nil
}

func (n *NewsEnricher) fetchFeed(ctx context.Context, url string) ([]types.Article, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := n.client.GET(ctx, url)
	if err != nil {
		return nil, err
	}
	feed, err := n.parser.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}
	out := make([]types.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := types.Article{
			Title:   strings.TrimSpace(item.Title),
			URL:     item.Link,
			Source:  feed.Title,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
		}
		out = append(out, a)
	}
	return out, nil
}

// cleanHTML strips markup from a feed description.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func newsKeywords(m types.Meta) []string {
	kw := []string{strings.ToLower(m.Ticker)}
	if name := strings.ToLower(strings.TrimSpace(m.CompanyName)); name != "" && name != kw[0] {
		kw = append(kw, name)
		// "Apple Inc." also matches plain "Apple".
		if first := strings.Fields(name)[0]; len(first) > 3 {
			kw = append(kw, first)
		}
	}
	return kw
}

// tokens lowercases s and reduces it to space-delimited words so keyword
// matching ignores punctuation.
func tokens(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '&')
	})
	return " " + strings.Join(words, " ") + " "
}

// matchesAny matches keywords as whole words, case-insensitively.
func matchesAny(text string, keywords []string) bool {
	t := tokens(text)
	for _, kw := range keywords {
		if k := tokens(kw); k != "  " && strings.Contains(t, k) {
			return true
		}
	}
	return false
}
