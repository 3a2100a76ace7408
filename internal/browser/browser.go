// Package browser defines the page capability the extraction engine
// consumes, plus the Rod-backed live implementation and a static
// implementation for offline fragments and tests. Any compliant
// automation driver satisfies the interface.
package browser

import (
	"context"
	"time"
)

// Scope is anything elements can be located in: a whole page or a
// subtree rooted at an element.
type Scope interface {
	// Find returns the first element matching the CSS selector in the
	// current DOM, without waiting. Returns types.ErrElementNotFound
	// (wrapped) when nothing matches.
	Find(selector string) (Element, error)

	// FindAll returns all current matches in document order. No
	// matches is an empty slice, not an error.
	FindAll(selector string) ([]Element, error)

	// HTML returns the scope's outer HTML.
	HTML() (string, error)
}

// Element is a handle to a located DOM element.
type Element interface {
	Scope

	// Text returns the element's rendered text.
	Text() (string, error)

	// Attr returns an attribute value, or "" when the attribute is
	// absent.
	Attr(name string) (string, error)

	// Click triggers the element's selection state.
	Click(ctx context.Context) error
}

// Page is the navigation-context capability. Navigation, waits and
// scrolls are the only suspension points; each blocks until the page
// signals readiness or its bound elapses.
type Page interface {
	Scope

	// Navigate loads the URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// WaitFor blocks until the selector matches or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// WaitStable blocks until the DOM stops changing for the
	// configured stability window.
	WaitStable(ctx context.Context) error

	// ScrollToBottom scrolls to the bottom of the page.
	ScrollToBottom(ctx context.Context) error

	// ScrollHeight reports the current document scroll height, used
	// to detect when lazy-loaded listings stop growing.
	ScrollHeight(ctx context.Context) (int, error)

	// Title returns the document title.
	Title() (string, error)
}
