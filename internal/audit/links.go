package audit

import (
	"strings"

	"golang.org/x/net/html"
)

// HasInternalLink reports whether body contains an anchor whose href starts
// with siteURL or with "/".
func HasInternalLink(body, siteURL string) bool {
	if !strings.Contains(body, "<a") && !strings.Contains(body, "<A") {
		return false
	}
	siteURL = strings.TrimRight(siteURL, "/")

	z := html.NewTokenizer(strings.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a read error; either way no link was found.
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" && isInternal(string(val), siteURL) {
					return true
				}
				if !more {
					break
				}
			}
		}
	}
}

func isInternal(href, siteURL string) bool {
	href = strings.TrimSpace(href)
	return strings.HasPrefix(href, "/") || (siteURL != "" && strings.HasPrefix(href, siteURL))
}
