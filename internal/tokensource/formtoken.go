package tokensource

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ErrFormTokenNotFound is returned when a page carries neither a _token input
// nor a csrf-token meta tag.
var ErrFormTokenNotFound = errors.New("form token not found in login page")

// ExtractFormToken returns the anti-forgery form token embedded in an HTML page.
//
// Lookup order is fixed: the value of an <input name="_token"> wins over the
// content of <meta name="csrf-token">, regardless of where each appears.
func ExtractFormToken(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	if token := findAttr(doc, "input", formTokenField, "value"); token != "" {
		return token, nil
	}
	if token := findAttr(doc, "meta", "csrf-token", "content"); token != "" {
		return token, nil
	}
	return "", ErrFormTokenNotFound
}

// findAttr walks the tree depth-first and returns attribute want of the first
// <tag name="name"> element that carries a non-empty value for it.
func findAttr(n *html.Node, tag, name, want string) string {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) && attr(n, "name") == name {
		if v := attr(n, want); v != "" {
			return v
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if v := findAttr(c, tag, name, want); v != "" {
			return v
		}
	}
	return ""
}

// attr returns the value of the named attribute, or "" when absent.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
