// Package links serialises the flat list of tagged items served by the read
// API, as JSON or as a sitemap-shaped XML document.
package links

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/TobiSchelling/nexus/internal/content"
	"github.com/TobiSchelling/nexus/internal/hierarchy"
	"github.com/TobiSchelling/nexus/internal/meta"
)

// Format is an output format of the read API.
type Format string

const (
	JSON Format = "json"
	XML  Format = "xml"
)

// SitemapNS is the namespace declared on the XML document root.
const SitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// ParseFormat decodes the format parameter. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", JSON:
		return JSON, nil
	case XML:
		return XML, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// ParseTypes decodes the type parameter. Each value may itself be a
// comma-separated list. Unknown and blank entries are dropped; when nothing
// valid remains the result is all types.
func ParseTypes(values []string) []meta.NexusType {
	var types []meta.NexusType
	seen := make(map[meta.NexusType]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			t, ok := meta.ParseType(part)
			if ok && !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
	}
	if len(types) == 0 {
		return meta.AllTypes
	}
	return types
}

// Projector reads tagged items and renders them.
type Projector struct {
	store   content.Store
	charset string
	// enc transcodes the XML document; nil for UTF-8.
	enc encoding.Encoding
}

// NewProjector creates a Projector. An empty charset means UTF-8. The
// charset must be a WHATWG encoding label.
func NewProjector(store content.Store, charset string) (*Projector, error) {
	if charset == "" {
		charset = "UTF-8"
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	p := &Projector{store: store, charset: charset}
	if enc != unicode.UTF8 {
		p.enc = enc
	}
	return p, nil
}

// Links returns the link list for types in store order.
func (p *Projector) Links(ctx context.Context, types []meta.NexusType) ([]hierarchy.Link, error) {
	items, err := meta.TaggedItems(ctx, p.store, types)
	if err != nil {
		return nil, err
	}
	return hierarchy.Flatten(items, types), nil
}

// ContentType returns the response content type for f. JSON is always UTF-8.
func (p *Projector) ContentType(f Format) string {
	if f == XML {
		return "application/xml; charset=" + p.charset
	}
	return "application/json; charset=UTF-8"
}

// Write renders links to w in format f.
func (p *Projector) Write(w io.Writer, f Format, links []hierarchy.Link) error {
	if f == XML {
		return p.writeXML(w, links)
	}
	return json.NewEncoder(w).Encode(links)
}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	NS      string   `xml:"xmlns,attr"`
	URLs    []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc     string `xml:"loc"`
	Title   string `xml:"title"`
	Keyword string `xml:"keyword"`
	Type    string `xml:"type"`
}

func (p *Projector) writeXML(w io.Writer, links []hierarchy.Link) error {
	doc := urlset{NS: SitemapNS, URLs: make([]xmlURL, 0, len(links))}
	for _, l := range links {
		doc.URLs = append(doc.URLs, xmlURL{
			Loc:     l.URL,
			Title:   l.Title,
			Keyword: l.Keyword,
			Type:    string(l.Type),
		})
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<?xml version=\"1.0\" encoding=\"%s\"?>\n", p.charset)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding urlset: %w", err)
	}
	buf.WriteString("\n")

	out := buf.Bytes()
	if p.enc != nil {
		// Characters the charset cannot hold become numeric character references.
		var err error
		out, err = encoding.HTMLEscapeUnsupported(p.enc.NewEncoder()).Bytes(out)
		if err != nil {
			return fmt.Errorf("transcoding to %s: %w", p.charset, err)
		}
	}
	_, err := w.Write(out)
	return err
}
