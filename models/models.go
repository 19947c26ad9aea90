package models

// Credentials are the login inputs supplied by the operator. They are
// never persisted or logged.
type Credentials struct {
	Username string
	Password string
}

// LoginResponse is the JSON body returned by POST /api/v1/user/login.
type LoginResponse struct {
	// Success indicates whether the credentials were accepted.
	Success bool `json:"success"`

	Data LoginData `json:"data"`
}

// LoginData carries the second-hop redirect issued on a successful login.
type LoginData struct {
	// CookieRedirect is the identity-provider URL that must be walked
	// to finalize the session cookies. Empty when no second hop is needed.
	CookieRedirect string `json:"cookie_redirect"`
}

// SearchResponse is the JSON body returned by GET /api/v1/search.
type SearchResponse struct {
	Data SearchData `json:"data"`
}

// SearchData wraps the paginated result items.
type SearchData struct {
	Items []SearchItem `json:"items"`
}

// SearchItem is one search result. Only the detail-page URL matters;
// items without one are skipped.
type SearchItem struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Type  string `json:"type,omitempty"`
}
