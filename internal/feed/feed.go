// CLAUDE:SUMMARY RSS 2.0 and Atom 1.0 parser with auto-detection and tolerant date resolution.
// Package feed parses RSS 2.0 and Atom 1.0 feeds using encoding/xml.
//
// Auto-detects format from the XML root element:
//   - <rss ...> → RSS 2.0
//   - <feed ...> → Atom 1.0
//
// RDF-rooted RSS 1.0 feeds are not supported; they fail with
// ErrUnknownFormat rather than half-parsing.
package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	// ErrEmpty is returned when the input contains no data.
	ErrEmpty = errors.New("feed: empty data")
	// ErrUnknownFormat is returned when the root element is neither rss nor feed.
	ErrUnknownFormat = errors.New("feed: unknown format (expected <rss> or <feed>)")
)

// Entry represents one item in a feed. Published keeps the raw timestamp
// string as it appeared in the feed; use PublishedAt to resolve it.
type Entry struct {
	GUID       string   `json:"guid"`
	Title      string   `json:"title"`
	Link       string   `json:"link"`
	Summary    string   `json:"summary"`
	Content    string   `json:"content"`
	Published  string   `json:"published"`
	Author     string   `json:"author"`
	Categories []string `json:"categories,omitempty"`
}

// PublishedAt parses the entry's raw timestamp. Feeds in the wild use RFC 1123,
// RFC 3339, and a long tail of broken variants, so parsing is tolerant. The
// result is normalized to UTC. Returns (nil, nil) when the entry is undated.
func (e Entry) PublishedAt() (*time.Time, error) {
	if e.Published == "" {
		return nil, nil
	}
	ts, err := dateparse.ParseAny(e.Published)
	if err != nil {
		return nil, fmt.Errorf("feed: parse published %q: %w", e.Published, err)
	}
	ts = ts.UTC()
	return &ts, nil
}

// Feed represents a parsed RSS or Atom feed.
type Feed struct {
	Title   string  `json:"title"`
	Link    string  `json:"link"`
	Entries []Entry `json:"entries"`
}

// Parse auto-detects and parses RSS 2.0 or Atom 1.0 XML.
func Parse(data []byte) (*Feed, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmpty
	}

	switch detectFormat(trimmed) {
	case "rss":
		return parseRSS(data)
	case "atom":
		return parseAtom(data)
	default:
		return nil, ErrUnknownFormat
	}
}

func detectFormat(data []byte) string {
	// Look for the first element after the XML declaration.
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			switch strings.ToLower(se.Name.Local) {
			case "rss":
				return "rss"
			case "feed":
				return "atom"
			default:
				return ""
			}
		}
	}
}

// --- RSS 2.0 ---

type rssRoot struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Link  string    `xml:"link"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	GUID        string   `xml:"guid"`
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Content     string   `xml:"encoded"` // content:encoded
	PubDate     string   `xml:"pubDate"`
	Author      string   `xml:"author"`
	Creator     string   `xml:"creator"` // dc:creator
	Categories  []string `xml:"category"`
}

func parseRSS(data []byte) (*Feed, error) {
	var root rssRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("feed: parse rss: %w", err)
	}

	ch := root.Channel
	feed := &Feed{
		Title:   strings.TrimSpace(ch.Title),
		Link:    strings.TrimSpace(ch.Link),
		Entries: make([]Entry, 0, len(ch.Items)),
	}

	for _, item := range ch.Items {
		author := strings.TrimSpace(item.Author)
		if author == "" {
			author = strings.TrimSpace(item.Creator)
		}

		guid := strings.TrimSpace(item.GUID)
		if guid == "" {
			guid = strings.TrimSpace(item.Link)
		}

		feed.Entries = append(feed.Entries, Entry{
			GUID:       guid,
			Title:      strings.TrimSpace(item.Title),
			Link:       strings.TrimSpace(item.Link),
			Summary:    strings.TrimSpace(item.Description),
			Content:    strings.TrimSpace(item.Content),
			Published:  strings.TrimSpace(item.PubDate),
			Author:     author,
			Categories: cleanCategories(item.Categories),
		})
	}

	return feed, nil
}

// --- Atom 1.0 ---

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Links   []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Links      []atomLink     `xml:"link"`
	Summary    string         `xml:"summary"`
	Content    atomContent    `xml:"content"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
	Authors    []atomAuthor   `xml:"author"`
	Categories []atomCategory `xml:"category"`
}

type atomContent struct {
	Body string `xml:",chardata"`
	Type string `xml:"type,attr"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term  string `xml:"term,attr"`
	Label string `xml:"label,attr"`
}

func parseAtom(data []byte) (*Feed, error) {
	var root atomFeed
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("feed: parse atom: %w", err)
	}

	feed := &Feed{
		Title:   strings.TrimSpace(root.Title),
		Link:    alternateLink(root.Links),
		Entries: make([]Entry, 0, len(root.Entries)),
	}

	for _, entry := range root.Entries {
		link := alternateLink(entry.Links)
		guid := strings.TrimSpace(entry.ID)
		if guid == "" {
			guid = link
		}

		published := strings.TrimSpace(entry.Published)
		if published == "" {
			published = strings.TrimSpace(entry.Updated)
		}

		var author string
		if len(entry.Authors) > 0 {
			author = strings.TrimSpace(entry.Authors[0].Name)
		}

		cats := make([]string, 0, len(entry.Categories))
		for _, c := range entry.Categories {
			term := strings.TrimSpace(c.Label)
			if term == "" {
				term = strings.TrimSpace(c.Term)
			}
			if term != "" {
				cats = append(cats, term)
			}
		}
		if len(cats) == 0 {
			cats = nil
		}

		feed.Entries = append(feed.Entries, Entry{
			GUID:       guid,
			Title:      strings.TrimSpace(entry.Title),
			Link:       link,
			Summary:    strings.TrimSpace(entry.Summary),
			Content:    strings.TrimSpace(entry.Content.Body),
			Published:  published,
			Author:     author,
			Categories: cats,
		})
	}

	return feed, nil
}

func alternateLink(links []atomLink) string {
	// Prefer rel="alternate", then first href.
	for _, l := range links {
		if l.Rel == "alternate" || l.Rel == "" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

func cleanCategories(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
