package refresh

import "sync"

// Navigator is the client's notion of "current page" and how to leave it.
type Navigator interface {
	Location() string
	Navigate(url string)
}

// NopNavigator never moves and reports an empty location.
type NopNavigator struct{}

func (NopNavigator) Location() string { return "" }
func (NopNavigator) Navigate(string)  {}

// LocationNavigator is an in-memory navigator for headless clients and tests.
type LocationNavigator struct {
	mu      sync.Mutex
	current string
	history []string
}

func NewLocationNavigator(start string) *LocationNavigator {
	return &LocationNavigator{current: start}
}

func (n *LocationNavigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Navigate moves to url and records it.
func (n *LocationNavigator) Navigate(url string) {
	n.mu.Lock()
	n.current = url
	n.history = append(n.history, url)
	n.mu.Unlock()
}

// Visit sets the current location without recording a navigation.
func (n *LocationNavigator) Visit(path string) {
	n.mu.Lock()
	n.current = path
	n.mu.Unlock()
}

// History returns every url passed to Navigate, oldest first.
func (n *LocationNavigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.history...)
}
