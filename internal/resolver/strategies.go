package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/taoharvest/taoharvest/internal/browser"
)

// Strategy is a single extraction method for one field. Strategies are
// tried in rank order; returning ("", nil) or an error both mean "this
// strategy found nothing here", which is a normal outcome.
type Strategy interface {
	// Name identifies the strategy in logs and drift reports.
	Name() string

	// Try attempts to extract a value from the scope.
	Try(scope browser.Scope) (string, error)
}

// cssStrategy extracts text or an attribute from the first element
// matching a CSS selector.
type cssStrategy struct {
	selector string
	attr     string
}

// ByCSS extracts the trimmed text of the first match.
func ByCSS(selector string) Strategy {
	return &cssStrategy{selector: selector}
}

// ByAttr extracts an attribute of the first match.
func ByAttr(selector, attr string) Strategy {
	return &cssStrategy{selector: selector, attr: attr}
}

func (s *cssStrategy) Name() string {
	if s.attr != "" {
		return fmt.Sprintf("css:%s@%s", s.selector, s.attr)
	}
	return "css:" + s.selector
}

func (s *cssStrategy) Try(scope browser.Scope) (string, error) {
	el, err := scope.Find(s.selector)
	if err != nil {
		return "", err
	}
	if s.attr != "" {
		return el.Attr(s.attr)
	}
	text, err := el.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// xpathStrategy evaluates an XPath expression against the scope's
// HTML snapshot. It covers structural and text-content positions that
// CSS selectors cannot express.
type xpathStrategy struct {
	expr string
	attr string
}

// ByXPath extracts the inner text of the first node matching expr.
func ByXPath(expr string) Strategy {
	return &xpathStrategy{expr: expr}
}

// ByXPathAttr extracts an attribute of the first node matching expr.
func ByXPathAttr(expr, attr string) Strategy {
	return &xpathStrategy{expr: expr, attr: attr}
}

func (s *xpathStrategy) Name() string {
	if s.attr != "" {
		return fmt.Sprintf("xpath:%s@%s", s.expr, s.attr)
	}
	return "xpath:" + s.expr
}

func (s *xpathStrategy) Try(scope browser.Scope) (string, error) {
	raw, err := scope.HTML()
	if err != nil {
		return "", err
	}
	doc, err := htmlquery.Parse(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse snapshot: %w", err)
	}
	node, err := htmlquery.Query(doc, s.expr)
	if err != nil {
		return "", fmt.Errorf("xpath %q: %w", s.expr, err)
	}
	if node == nil {
		return "", nil
	}
	if s.attr != "" {
		return htmlquery.SelectAttr(node, s.attr), nil
	}
	return strings.TrimSpace(nodeText(node)), nil
}

// patternStrategy matches a regular expression against the scope's
// HTML snapshot; the first capture group (or the whole match) wins.
type patternStrategy struct {
	re *regexp.Regexp
}

// ByPattern extracts via a text pattern over the scope's markup.
func ByPattern(pattern string) Strategy {
	return &patternStrategy{re: regexp.MustCompile(pattern)}
}

func (s *patternStrategy) Name() string {
	return "pattern:" + s.re.String()
}

func (s *patternStrategy) Try(scope browser.Scope) (string, error) {
	raw, err := scope.HTML()
	if err != nil {
		return "", err
	}
	m := s.re.FindStringSubmatch(raw)
	if m == nil {
		return "", nil
	}
	if len(m) > 1 {
		return strings.TrimSpace(m[1]), nil
	}
	return strings.TrimSpace(m[0]), nil
}

// nodeText flattens a node subtree to text.
func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}
