package documents

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SanitizeHTML drops script and embedding elements, inline event handlers,
// srcdoc and script or data URLs from edited markup. Inline images may keep
// a data:image source. Full documents keep their html/head/body shell;
// fragments are rendered back as fragments.
func SanitizeHTML(markup string) ([]byte, error) {
	var buf bytes.Buffer
	lower := strings.ToLower(markup)
	if strings.Contains(lower, "<html") || strings.Contains(lower, "<!doctype") {
		doc, err := html.Parse(strings.NewReader(markup))
		if err != nil {
			return nil, err
		}
		scrub(doc)
		if err := html.Render(&buf, doc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if dropped(n) {
			continue
		}
		scrub(n)
		if err := html.Render(&buf, n); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func scrub(n *html.Node) {
	if n.Type == html.ElementNode {
		n.Attr = safeAttrs(n.DataAtom, n.Attr)
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if dropped(c) {
			n.RemoveChild(c)
		} else {
			scrub(c)
		}
		c = next
	}
}

func dropped(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Iframe, atom.Frame, atom.Object, atom.Embed, atom.Base:
		return true
	}
	return false
}

func safeAttrs(el atom.Atom, attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if strings.HasPrefix(key, "on") || key == "srcdoc" {
			continue
		}
		switch key {
		case "href", "src", "action", "formaction", "xlink:href", "data", "poster", "background":
			if !safeURL(el, key, a.Val) {
				continue
			}
		}
		kept = append(kept, a)
	}
	return kept
}

// safeURL reports whether v may stay in a URL attribute. Browsers ignore
// whitespace and control characters inside the scheme, so they are stripped
// before comparing.
func safeURL(el atom.Atom, key, v string) bool {
	v = strings.ToLower(strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, v))
	switch {
	case strings.HasPrefix(v, "javascript:"), strings.HasPrefix(v, "vbscript:"):
		return false
	case strings.HasPrefix(v, "data:"):
		return el == atom.Img && key == "src" && strings.HasPrefix(v, "data:image/") && !strings.HasPrefix(v, "data:image/svg")
	}
	return true
}
