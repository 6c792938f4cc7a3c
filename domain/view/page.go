package view

import (
	"fmt"
	"strings"
	"sync"

	"oncodetect/domain/core"
)

// Page is a navigation destination of the triage console
type Page string

const (
	PageHome       Page = "home"
	PageScreening  Page = "screening"
	PageHowItWorks Page = "how-it-works"
	PageClinicians Page = "clinicians"
	PageResearch   Page = "research"
)

// Pages lists navigation entries in menu order
var Pages = []Page{PageHome, PageScreening, PageHowItWorks, PageClinicians, PageResearch}

var pageTitles = map[Page]string{
	PageHome:       "Home",
	PageScreening:  "Screening",
	PageHowItWorks: "How It Works",
	PageClinicians: "For Clinicians",
	PageResearch:   "Research",
}

// ParsePage parses a page name; "" means home
func ParsePage(s string) (Page, error) {
	s = strings.Trim(strings.ToLower(strings.TrimSpace(s)), "/")
	if s == "" {
		return PageHome, nil
	}
	p := Page(s)
	if _, ok := pageTitles[p]; !ok {
		return "", fmt.Errorf("%w: %q", core.ErrUnknownPage, s)
	}
	return p, nil
}

// Title returns the menu label
func (p Page) Title() string {
	return pageTitles[p]
}

// Path returns the route serving the page
func (p Page) Path() string {
	if p == PageHome {
		return "/"
	}
	return "/" + string(p)
}

// Navigator tracks the current page. It is independent of any request
// state; callers reset analysis state when Go reports a change.
type Navigator struct {
	mu      sync.Mutex
	current Page
}

// NewNavigator starts on the home page
func NewNavigator() *Navigator {
	return &Navigator{current: PageHome}
}

// Current returns the active page
func (n *Navigator) Current() Page {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Go switches to page and reports whether the page changed
func (n *Navigator) Go(page Page) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == page {
		return false
	}
	n.current = page
	return true
}
