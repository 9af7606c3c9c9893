package sparql

import (
	"net/url"
	"strings"
)

// Endpoint locates a dataset on a SPARQL 1.1 protocol server. It is a plain
// value and may be copied freely.
type Endpoint struct {
	BaseURL  string
	Dataset  string
	Username string
	Password string
}

// NewEndpoint returns an endpoint without credentials.
func NewEndpoint(baseURL, dataset string) Endpoint {
	return Endpoint{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Dataset: strings.Trim(strings.TrimSpace(dataset), "/"),
	}
}

// WithCredentials returns a copy that authenticates updates with basic auth.
func (e Endpoint) WithCredentials(username, password string) Endpoint {
	e.Username = username
	e.Password = password
	return e
}

// HasCredentials reports whether basic auth will be sent.
func (e Endpoint) HasCredentials() bool {
	return e.Username != "" || e.Password != ""
}

// DatasetURL returns {base}/{dataset}.
func (e Endpoint) DatasetURL() string {
	return e.BaseURL + "/" + url.PathEscape(e.Dataset)
}

// QueryURL returns {base}/{dataset}/query.
func (e Endpoint) QueryURL() string {
	return e.DatasetURL() + "/query"
}

// UpdateURL returns {base}/{dataset}/update.
func (e Endpoint) UpdateURL() string {
	return e.DatasetURL() + "/update"
}

// String renders the endpoint without the password.
func (e Endpoint) String() string {
	if e.Username == "" {
		return e.DatasetURL()
	}
	return e.Username + "@" + e.DatasetURL()
}
