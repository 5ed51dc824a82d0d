package api

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

// Response formats.
const (
	formatJSON = "json"
	formatXML  = "xml"
	formatYAML = "yaml"
)

// negotiateFormat picks the response format from the ?format= parameter,
// falling back to the Accept header and then to JSON.
func negotiateFormat(r *http.Request) (string, error) {
	if value := strings.TrimSpace(r.URL.Query().Get("format")); value != "" {
		switch strings.ToLower(value) {
		case formatJSON, formatXML, formatYAML:
			return strings.ToLower(value), nil
		default:
			return "", apperrors.New(apperrors.CodeAPIInvalidFormat,
				fmt.Sprintf("unsupported format %q", value))
		}
	}
	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "application/xml"), strings.Contains(accept, "text/xml"):
		return formatXML, nil
	case strings.Contains(accept, "application/x-yaml"), strings.Contains(accept, "text/yaml"):
		return formatYAML, nil
	default:
		return formatJSON, nil
	}
}

// listEnvelope is the paginated list response shape: a total count, absolute
// next/previous page links, and the page of results.
type listEnvelope[T any] struct {
	XMLName  xml.Name `json:"-" xml:"response" yaml:"-"`
	Count    int64    `json:"count" xml:"count" yaml:"count"`
	Next     *string  `json:"next" xml:"next,omitempty" yaml:"next"`
	Previous *string  `json:"previous" xml:"previous,omitempty" yaml:"previous"`
	Results  []T      `json:"results" xml:"results>result" yaml:"results"`
}

func newListEnvelope[T any](r *http.Request, count int64, limit, offset int, results []T) listEnvelope[T] {
	envelope := listEnvelope[T]{Count: count, Results: results}
	if results == nil {
		envelope.Results = []T{}
	}
	if int64(offset+limit) < count {
		next := pageURL(r, limit, offset+limit)
		envelope.Next = &next
	}
	if offset > 0 {
		previousOffset := offset - limit
		if previousOffset < 0 {
			previousOffset = 0
		}
		previous := pageURL(r, limit, previousOffset)
		envelope.Previous = &previous
	}
	return envelope
}

// pageURL builds an absolute page link, honoring X-Forwarded-Proto so links
// stay correct behind a TLS-terminating proxy. Requests without a Host
// header get a path-relative link.
func pageURL(r *http.Request, limit, offset int) string {
	values := r.URL.Query()
	values.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		values.Set("offset", strconv.Itoa(offset))
	} else {
		values.Del("offset")
	}
	page := &url.URL{Path: r.URL.Path, RawQuery: values.Encode()}
	if r.Host != "" {
		page.Scheme = requestScheme(r)
		page.Host = r.Host
	}
	return page.String()
}

func requestScheme(r *http.Request) string {
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func writeResponse(w http.ResponseWriter, r *http.Request, status int, payload any) {
	format, err := negotiateFormat(r)
	if err != nil {
		writeErrorFormat(w, formatJSON, err)
		return
	}
	writePayload(w, format, status, payload)
}

func writePayload(w http.ResponseWriter, format string, status int, payload any) {
	var body []byte
	var contentType string
	var err error
	switch format {
	case formatXML:
		contentType = "application/xml; charset=utf-8"
		body, err = xml.MarshalIndent(payload, "", "  ")
	case formatYAML:
		contentType = "application/x-yaml; charset=utf-8"
		body, err = yaml.Marshal(payload)
	default:
		contentType = "application/json; charset=utf-8"
		body, err = json.Marshal(payload)
	}
	if err != nil {
		log.Printf("encode response: %v", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"UNKNOWN","message":"encode response"}}`))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// errorEnvelope is the error response shape.
type errorEnvelope struct {
	XMLName xml.Name  `json:"-" xml:"error_response" yaml:"-"`
	Error   errorBody `json:"error" xml:"error" yaml:"error"`
}

type errorBody struct {
	Code    string `json:"code" xml:"code" yaml:"code"`
	Message string `json:"message" xml:"message" yaml:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	format, formatErr := negotiateFormat(r)
	if formatErr != nil {
		format = formatJSON
	}
	writeErrorFormat(w, format, err)
}

func writeErrorFormat(w http.ResponseWriter, format string, err error) {
	code := apperrors.GetCode(err)
	status := code.HTTPStatus()
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in the logs.
		log.Printf("internal error: %v", err)
		message = "internal error"
	}
	writePayload(w, format, status, errorEnvelope{
		Error: errorBody{Code: string(code), Message: message},
	})
}
