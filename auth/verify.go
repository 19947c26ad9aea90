package auth

import (
	"bytes"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// LoggedInMarker is the class the site puts on <body> once the session
// is authenticated.
const LoggedInMarker = "user-logged-in"

var loggedInSelector = cascadia.MustCompile("body." + LoggedInMarker)

// HasLoggedInMarker reports whether the page carries the authenticated
// marker: first as a class on the body element, then anywhere in the raw
// text as a fallback for markup the parser mangles.
func HasLoggedInMarker(body []byte) bool {
	doc, err := html.Parse(bytes.NewReader(body))
	if err == nil && cascadia.Query(doc, loggedInSelector) != nil {
		return true
	}
	return bytes.Contains(body, []byte(LoggedInMarker))
}
