package ingestion

import (
	"strings"

	"golang.org/x/net/html"
)

// Subtrees whose contents never reach the extractor.
var skippedElements = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
	"iframe":   true,
	"template": true,
}

// Closing these ends a line of text.
var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "article": true, "section": true,
	"time": true, "dd": true, "dt": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "footer": true, "table": true,
}

// CompactHTML reduces a page to readable text, keeping link and image
// targets inline so the extractor can still see detail URLs.
func CompactHTML(doc string) string {
	var (
		b     strings.Builder
		skip  int
		links []string
	)

	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}

		tok := z.Token()
		switch tt {
		case html.StartTagToken:
			// An unclosed head must not swallow the body.
			if tok.Data == "body" {
				skip = 0
			}
			if skippedElements[tok.Data] {
				skip++
				continue
			}
			if skip > 0 {
				continue
			}
			switch tok.Data {
			case "a":
				href := attr(tok, "href")
				if strings.HasPrefix(href, "#") {
					href = ""
				}
				links = append(links, href)
			case "img":
				writeImage(&b, tok)
			case "br":
				b.WriteByte('\n')
			default:
				b.WriteByte(' ')
			}

		case html.SelfClosingTagToken:
			if skip > 0 {
				continue
			}
			switch tok.Data {
			case "img":
				writeImage(&b, tok)
			case "br":
				b.WriteByte('\n')
			default:
				b.WriteByte(' ')
			}

		case html.EndTagToken:
			if skippedElements[tok.Data] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip > 0 {
				continue
			}
			switch {
			case tok.Data == "a":
				if n := len(links); n > 0 {
					if href := links[n-1]; href != "" {
						b.WriteString(" [" + href + "]")
					}
					links = links[:n-1]
				}
			case blockElements[tok.Data]:
				b.WriteByte('\n')
			default:
				b.WriteByte(' ')
			}

		case html.TextToken:
			if skip == 0 {
				b.WriteString(tok.Data)
			}
		}
	}

	return compactLines(b.String())
}

func writeImage(b *strings.Builder, tok html.Token) {
	if src := attr(tok, "src"); src != "" {
		b.WriteString(" [img " + src + "] ")
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// compactLines collapses whitespace and drops blank or repeated lines.
func compactLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1] == line {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
