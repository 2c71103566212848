// Package notification models one inbound webhook delivery: its raw body,
// normalized transport metadata, lazily parsed payload and the response a
// handler eventually sets.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/PaesslerAG/jsonpath"

	"github.com/derafu/github/internal/apperror"
	"github.com/derafu/github/internal/response"
)

// Notification is request scoped. Body and metadata are fixed at
// construction; the payload is parsed at most once.
type Notification struct {
	body []byte
	meta Metadata

	payloadOnce sync.Once
	payload     any
	payloadErr  error

	response *response.Response
}

// New builds a notification from the raw body, the ambient request snapshot
// and an optional override map. Override entries always win.
func New(body []byte, rc RequestContext, override Metadata) *Notification {
	meta := rc.Metadata()
	for key, value := range override {
		meta[key] = value
	}
	return &Notification{
		body: bytes.Clone(body),
		meta: meta,
	}
}

// Body returns a copy of the raw request body.
func (n *Notification) Body() []byte {
	return bytes.Clone(n.body)
}

// Metadata returns a copy of the normalized transport metadata.
func (n *Notification) Metadata() Metadata {
	out := make(Metadata, len(n.meta))
	for key, value := range n.meta {
		out[key] = value
	}
	return out
}

func (n *Notification) required(key string) (string, error) {
	value := n.meta[key]
	if value == "" {
		return "", apperror.MissingField(key)
	}
	return value, nil
}

func (n *Notification) RequestMethod() (string, error) { return n.required(MetaMethod) }

func (n *Notification) Event() (string, error) { return n.required(MetaEvent) }

func (n *Notification) DeliveryID() (string, error) { return n.required(MetaDeliveryID) }

// SignatureHeader returns the raw header value, e.g. "sha256=<hex>".
func (n *Notification) SignatureHeader() (string, error) { return n.required(MetaSignature) }

// HashToken returns the optional secondary token.
func (n *Notification) HashToken() (string, bool) {
	token, ok := n.meta[MetaHashToken]
	return token, ok
}

func (n *Notification) signatureParts() (string, string, error) {
	header, err := n.SignatureHeader()
	if err != nil {
		return "", "", err
	}
	algorithm, value, found := strings.Cut(header, "=")
	if !found {
		return "", "", apperror.MalformedSignature()
	}
	return algorithm, value, nil
}

// SignatureAlgorithm returns the part of the signature header before the first "=".
func (n *Notification) SignatureAlgorithm() (string, error) {
	algorithm, _, err := n.signatureParts()
	return algorithm, err
}

// SignatureValue returns the part of the signature header after the first "=".
func (n *Notification) SignatureValue() (string, error) {
	_, value, err := n.signatureParts()
	return value, err
}

// Payload parses the body as JSON on first access and memoizes the result,
// including a parse failure.
func (n *Notification) Payload() (any, error) {
	n.payloadOnce.Do(func() {
		var v any
		if err := json.Unmarshal(n.body, &v); err != nil {
			n.payloadErr = apperror.MalformedPayload(err)
			return
		}
		n.payload = v
	})
	return n.payload, n.payloadErr
}

// Lookup resolves a dotted field path ("workflow_run.actor.login") in the
// payload. Absent or null values are a missing-field error.
func (n *Notification) Lookup(path string) (any, error) {
	payload, err := n.Payload()
	if err != nil {
		return nil, err
	}
	value, err := jsonpath.Get("$."+path, payload)
	if err != nil || value == nil {
		return nil, apperror.MissingField(path)
	}
	return value, nil
}

// String resolves path and renders scalar values as a string.
func (n *Notification) String(path string) (string, error) {
	value, err := n.Lookup(path)
	if err != nil {
		return "", err
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case float64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", apperror.MissingField(path)
	}
}

// SetResponse stores the handler result. Strings and maps are wrapped into a
// response.Response; the last call wins.
func (n *Notification) SetResponse(v any) error {
	r, err := response.Wrap(v)
	if err != nil {
		return err
	}
	n.response = &r
	return nil
}

// Response returns the stored response or a no-response error.
func (n *Notification) Response() (response.Response, error) {
	if n.response == nil {
		return response.Response{}, apperror.NoResponse()
	}
	return *n.response, nil
}

// HasResponse reports whether a handler already set a response.
func (n *Notification) HasResponse() bool {
	return n.response != nil
}
