package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"
)

// Kind classifies a resolver failure.
type Kind string

const (
	KindConfig     Kind = "config"
	KindValidation Kind = "validation"
	KindNetwork    Kind = "network"
	KindHTTPStatus Kind = "http_status"
	KindVendor     Kind = "vendor"
)

// Vendor-neutral codes attached to vendor errors that the host pattern-matches on.
const (
	CodeAlreadyExists = "AlreadyExists"
	CodeNotFound      = "NotFound"
	CodeUnsupported   = "Unsupported"
	CodeTooLarge      = "ResponseTooLarge"
)

const maxEmbeddedBody = 2000

// Error is the structured failure carried by an error Result.
type Error struct {
	Kind    Kind
	Code    string
	Status  int
	Message string
	Body    string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		return e.Err.Error()
	}
	if msg == "" {
		return string(e.Kind) + " error"
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithCode returns a copy of e tagged with code.
func (e *Error) WithCode(code string) *Error {
	out := *e
	out.Code = code
	return &out
}

func Configf(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Vendorf(code, format string, args ...any) *Error {
	return &Error{Kind: KindVendor, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Network wraps a transport failure.
func Network(prefix string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: fmt.Sprintf("%s: %v", prefix, err), Err: err}
}

// HTTPStatus builds the error for a non-2xx response. The body is embedded as JSON:
// compacted when it already is JSON, quoted otherwise.
func HTTPStatus(prefix string, status int, body []byte) *Error {
	embedded := EmbedBody(body)
	return &Error{
		Kind:    KindHTTPStatus,
		Status:  status,
		Message: fmt.Sprintf("%s failed with status %d: %s", prefix, status, embedded),
		Body:    embedded,
	}
}

// EmbedBody renders a response body as a JSON string fragment.
func EmbedBody(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return `""`
	}
	var out string
	if json.Valid(trimmed) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			out = buf.String()
		}
	}
	if out == "" {
		quoted, _ := json.Marshal(string(trimmed))
		out = string(quoted)
	}
	if len(out) > maxEmbeddedBody {
		cut := maxEmbeddedBody
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut] + "..."
	}
	return out
}

// AsError converts any error into *Error, keeping an existing one.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
	}
	return &Error{Kind: KindVendor, Message: err.Error(), Err: err}
}

// IsKind reports whether err is a resolver error of kind k.
func IsKind(err error, k Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == k
}

// HasCode reports whether err is a resolver error carrying code.
func HasCode(err error, code string) bool {
	var re *Error
	return errors.As(err, &re) && re.Code == code
}
