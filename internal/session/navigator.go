package session

import (
	"fmt"
	"io"
	"sync"
)

// Route is a destination the user can be sent to.
type Route string

const (
	RouteHome    Route = "home"
	RouteLogin   Route = "login"
	RouteUploads Route = "uploads"
)

// Navigator moves the user to a route.
type Navigator interface {
	Navigate(route Route)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(Route)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(r Route) { f(r) }

// hints are the CLI renditions of each route.
var hints = map[Route]string{
	RouteHome:    "Logged out.",
	RouteLogin:   "Please log in: plk login",
	RouteUploads: "View your uploads: plk uploads",
}

// PrintNavigator writes a one-line hint for each navigation.
type PrintNavigator struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrintNavigator returns a navigator printing to w.
func NewPrintNavigator(w io.Writer) *PrintNavigator {
	return &PrintNavigator{w: w}
}

// Navigate implements Navigator.
func (n *PrintNavigator) Navigate(r Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	hint, ok := hints[r]
	if !ok {
		hint = string(r)
	}
	fmt.Fprintln(n.w, hint)
}

// RecordingNavigator remembers every route it was sent to.
type RecordingNavigator struct {
	mu     sync.Mutex
	routes []Route
}

// Navigate implements Navigator.
func (n *RecordingNavigator) Navigate(r Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, r)
}

// Routes returns the navigation history.
func (n *RecordingNavigator) Routes() []Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Route(nil), n.routes...)
}

// Last returns the most recent route, or "".
func (n *RecordingNavigator) Last() Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.routes) == 0 {
		return ""
	}
	return n.routes[len(n.routes)-1]
}
