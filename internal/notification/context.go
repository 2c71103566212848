package notification

import (
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v57/github"
)

// Normalized metadata keys.
const (
	MetaMethod     = "method"
	MetaEvent      = "event"
	MetaDeliveryID = "delivery_id"
	MetaSignature  = "signature"
	MetaHashToken  = "hash_token"
)

// QueryHashToken is the query parameter carrying the secondary shared token.
const QueryHashToken = "hash"

// ServerRequestMethod is the CGI-style variable holding the request method.
const ServerRequestMethod = "REQUEST_METHOD"

// CGI-style variable names of the GitHub transport headers.
var (
	ServerEvent      = ServerKey(gh.EventTypeHeader)
	ServerDeliveryID = ServerKey(gh.DeliveryIDHeader)
	ServerSignature  = ServerKey(gh.SHA256SignatureHeader)
)

// Metadata is the normalized bag of transport metadata of a notification.
type Metadata map[string]string

// RequestContext is a snapshot of the ambient request environment: query
// parameters plus CGI-style server variables. Production code builds it with
// ContextFromRequest; tests supply literal values.
type RequestContext struct {
	Query  url.Values
	Server map[string]string
}

// ServerKey converts an HTTP header name into its CGI variable name, e.g.
// "X-GitHub-Event" becomes "HTTP_X_GITHUB_EVENT".
func ServerKey(header string) string {
	return "HTTP_" + strings.ToUpper(strings.ReplaceAll(header, "-", "_"))
}

// ContextFromRequest snapshots r. Every header is exposed under its CGI name;
// the event and delivery id come from go-github's header readers.
func ContextFromRequest(r *http.Request) RequestContext {
	server := make(map[string]string, len(r.Header)+1)
	for name := range r.Header {
		switch http.CanonicalHeaderKey(name) {
		case http.CanonicalHeaderKey(gh.EventTypeHeader), http.CanonicalHeaderKey(gh.DeliveryIDHeader):
			continue
		}
		server[ServerKey(name)] = r.Header.Get(name)
	}
	server[ServerRequestMethod] = r.Method
	if event := gh.WebHookType(r); event != "" {
		server[ServerEvent] = event
	}
	if delivery := gh.DeliveryID(r); delivery != "" {
		server[ServerDeliveryID] = delivery
	}

	return RequestContext{
		Query:  r.URL.Query(),
		Server: server,
	}
}

// serverSources maps normalized keys to the server variable they are read from.
var serverSources = map[string]string{
	MetaMethod:     ServerRequestMethod,
	MetaEvent:      ServerEvent,
	MetaDeliveryID: ServerDeliveryID,
	MetaSignature:  ServerSignature,
}

// Metadata extracts the normalized keys. Transport values come only from
// server variables; the query contributes nothing but the hash token.
// Absent entries are omitted.
func (rc RequestContext) Metadata() Metadata {
	meta := make(Metadata, len(serverSources)+1)
	for normalized, source := range serverSources {
		if value, ok := rc.Server[source]; ok {
			meta[normalized] = value
		}
	}
	if values, ok := rc.Query[QueryHashToken]; ok && len(values) > 0 {
		meta[MetaHashToken] = values[0]
	}
	if method, ok := meta[MetaMethod]; ok {
		meta[MetaMethod] = strings.ToUpper(method)
	}
	return meta
}
