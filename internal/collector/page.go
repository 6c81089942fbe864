package collector

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// page holds the signals read from a store's HTML document.
type page struct {
	Title         string
	SiteName      string
	AppName       string
	Lang          string
	OGLocale      string
	PriceCurrency string
	Description   string
	Icon          string
	OGImage       string
	LogoImage     string
	JSONLD        []string
	Text          string
}

// Logo returns the most brand-specific logo reference found on the page.
func (p *page) Logo() string {
	switch {
	case p.LogoImage != "":
		return p.LogoImage
	case p.Icon != "":
		return p.Icon
	default:
		return p.OGImage
	}
}

func parsePage(body []byte) (*page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	p := &page{}
	var text strings.Builder
	walk(doc, p, &text)
	p.Text = collapseSpaces(text.String())

	return p, nil
}

func walk(n *html.Node, p *page, text *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		text.WriteString(n.Data)
		text.WriteByte(' ')
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Html:
			if p.Lang == "" {
				p.Lang = attr(n, "lang")
			}
		case atom.Title:
			if p.Title == "" {
				p.Title = collapseSpaces(nodeText(n))
			}
			return
		case atom.Meta:
			readMeta(n, p)
			return
		case atom.Link:
			rel := strings.ToLower(attr(n, "rel"))
			if p.Icon == "" && strings.Contains(rel, "icon") {
				p.Icon = attr(n, "href")
			}
			return
		case atom.Img:
			if p.LogoImage == "" && looksLikeLogo(n) {
				p.LogoImage = attr(n, "src")
			}
			return
		case atom.Script:
			if strings.EqualFold(strings.TrimSpace(attr(n, "type")), "application/ld+json") {
				if raw := strings.TrimSpace(nodeText(n)); raw != "" {
					p.JSONLD = append(p.JSONLD, raw)
				}
			}
			return
		case atom.Style, atom.Noscript, atom.Template, atom.Svg:
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, p, text)
	}
}

func readMeta(n *html.Node, p *page) {
	key := strings.ToLower(attr(n, "property"))
	if key == "" {
		key = strings.ToLower(attr(n, "name"))
	}
	if key == "" && strings.EqualFold(attr(n, "itemprop"), "priceCurrency") {
		key = "product:price:currency"
	}
	value := strings.TrimSpace(attr(n, "content"))
	if value == "" {
		return
	}

	switch key {
	case "og:site_name":
		setOnce(&p.SiteName, value)
	case "application-name":
		setOnce(&p.AppName, value)
	case "og:locale":
		setOnce(&p.OGLocale, value)
	case "og:price:currency", "product:price:currency":
		setOnce(&p.PriceCurrency, value)
	case "description", "og:description":
		setOnce(&p.Description, collapseSpaces(value))
	case "og:image":
		setOnce(&p.OGImage, value)
	}
}

func looksLikeLogo(n *html.Node) bool {
	for _, key := range []string{"class", "id", "alt", "src"} {
		if strings.Contains(strings.ToLower(attr(n, key)), "logo") {
			return attr(n, "src") != ""
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func setOnce(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
