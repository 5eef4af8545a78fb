package mockwapi

import (
	"encoding/base64"
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	TypeHost    = "record:host"
	TypeA       = "record:a"
	TypeNetwork = "network"

	defaultView = "default"
)

// wapiError is the error body WAPI returns with non-2xx responses.
type wapiError struct {
	Status int    `json:"-"`
	Error  string `json:"Error"`
	Code   string `json:"code"`
	Text   string `json:"text"`
}

func conflict(format string, args ...any) *wapiError {
	text := fmt.Sprintf(format, args...)
	return &wapiError{Status: 400, Error: "AdmConDataError: None (IBDataConflictError: IB.Data.Conflict:" + text + ")", Code: "Client.Ibap.Data.Conflict", Text: text}
}

func notFound(ref string) *wapiError {
	text := "Reference " + ref + " not found"
	return &wapiError{Status: 404, Error: "AdmConDataNotFoundError: " + text, Code: "Client.Ibap.Data.NotFound", Text: text}
}

func protoError(format string, args ...any) *wapiError {
	text := fmt.Sprintf(format, args...)
	return &wapiError{Status: 400, Error: "AdmConProtoError: " + text, Code: "Client.Ibap.Proto", Text: text}
}

// objectType describes the fields one WAPI object type keeps.
type objectType struct {
	name string
	// key is the field that must be unique and names the object in its _ref.
	key      string
	required []string
	fields   []string
}

var objectTypes = map[string]objectType{
	TypeHost: {
		name:     TypeHost,
		key:      "name",
		required: []string{"name", "ipv4addrs"},
		fields:   []string{"name", "ipv4addrs", "view", "comment", "ttl", "extattrs", "configure_for_dns"},
	},
	TypeA: {
		name:     TypeA,
		key:      "name",
		required: []string{"name", "ipv4addr"},
		fields:   []string{"name", "ipv4addr", "view", "comment", "ttl", "extattrs"},
	},
	TypeNetwork: {
		name:     TypeNetwork,
		key:      "network",
		required: []string{"network"},
		fields:   []string{"network", "network_view", "comment", "extattrs"},
	},
}

type object struct {
	typ    objectType
	id     string
	fields map[string]any
}

func (o *object) ref() string {
	return o.typ.name + "/" + o.id + ":" + fmt.Sprint(o.fields[o.typ.key]) + "/" + defaultView
}

// render returns the object as WAPI would, _ref included.
func (o *object) render() map[string]any {
	out := make(map[string]any, len(o.fields)+1)
	for k, v := range o.fields {
		out[k] = v
	}
	out["_ref"] = o.ref()
	if o.typ.name == TypeHost {
		out["ipv4addrs"] = o.hostAddrs()
	}
	return out
}

// hostAddrs expands ipv4addrs entries with their own sub-object refs.
func (o *object) hostAddrs() []map[string]any {
	var out []map[string]any
	list, _ := o.fields["ipv4addrs"].([]any)
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		addr := fmt.Sprint(m["ipv4addr"])
		out = append(out, map[string]any{
			"_ref":               "record:host_ipv4addr/" + o.id + ":" + addr + "/" + fmt.Sprint(o.fields["name"]) + "/" + defaultView,
			"ipv4addr":           addr,
			"host":               o.fields["name"],
			"configure_for_dhcp": false,
		})
	}
	return out
}

// store is the in-memory object database, kept in insertion order.
type store struct {
	mu      sync.Mutex
	objects []*object
}

// newID mimics WAPI's opaque base64 ids. It never contains ':' or '/'.
func newID() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

func (s *store) reset() {
	s.mu.Lock()
	s.objects = nil
	s.mu.Unlock()
}

// find resolves a ref by type and opaque id; the name part may be stale.
func (s *store) find(ref string) (*object, int) {
	typ, rest, ok := strings.Cut(ref, "/")
	if !ok {
		return nil, -1
	}
	id, _, _ := strings.Cut(rest, ":")
	for i, o := range s.objects {
		if o.typ.name == typ && o.id == id {
			return o, i
		}
	}
	return nil, -1
}

func (s *store) list(typ string, filters map[string]string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	for _, o := range s.objects {
		if o.typ.name != typ || !matches(o, filters) {
			continue
		}
		out = append(out, o.render())
	}
	return out
}

func matches(o *object, filters map[string]string) bool {
	for k, want := range filters {
		if k == "ipv4addr" && o.typ.name == TypeHost {
			found := false
			for _, a := range o.hostAddrs() {
				if a["ipv4addr"] == want {
					found = true
				}
			}
			if !found {
				return false
			}
			continue
		}
		v, ok := o.fields[k]
		if !ok || !strings.EqualFold(fmt.Sprint(v), want) {
			return false
		}
	}
	return true
}

func (s *store) get(ref string) (map[string]any, *wapiError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, _ := s.find(ref)
	if o == nil {
		return nil, notFound(ref)
	}
	return o.render(), nil
}

func (s *store) create(typ objectType, body map[string]any) (string, *wapiError) {
	fields, werr := typ.clean(body, true)
	if werr != nil {
		return "", werr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if werr := s.unique(typ, fields[typ.key], ""); werr != nil {
		return "", werr
	}
	o := &object{typ: typ, id: newID(), fields: fields}
	s.objects = append(s.objects, o)
	return o.ref(), nil
}

func (s *store) update(ref string, body map[string]any) (string, *wapiError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, _ := s.find(ref)
	if o == nil {
		return "", notFound(ref)
	}
	fields, werr := o.typ.clean(body, false)
	if werr != nil {
		return "", werr
	}
	if v, ok := fields[o.typ.key]; ok {
		if werr := s.unique(o.typ, v, o.id); werr != nil {
			return "", werr
		}
	}
	for k, v := range fields {
		o.fields[k] = v
	}
	return o.ref(), nil
}

func (s *store) delete(ref string) (string, *wapiError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, i := s.find(ref)
	if o == nil {
		return "", notFound(ref)
	}
	s.objects = slices.Delete(s.objects, i, i+1)
	return o.ref(), nil
}

func (s *store) unique(typ objectType, key any, exceptID string) *wapiError {
	for _, o := range s.objects {
		if o.typ.name == typ.name && o.id != exceptID && strings.EqualFold(fmt.Sprint(o.fields[typ.key]), fmt.Sprint(key)) {
			return conflict("The record '%v' already exists.", key)
		}
	}
	return nil
}

// clean keeps known fields, applies defaults on create and validates values.
func (t objectType) clean(body map[string]any, creating bool) (map[string]any, *wapiError) {
	out := map[string]any{}
	for k, v := range body {
		if !slices.Contains(t.fields, k) {
			return nil, protoError("Unknown argument/field: '%s'", k)
		}
		out[k] = v
	}
	if creating {
		for _, k := range t.required {
			if v, ok := out[k]; !ok || v == nil || v == "" {
				return nil, protoError("Field is not provided: '%s'", k)
			}
		}
		switch t.name {
		case TypeNetwork:
			if _, ok := out["network_view"]; !ok {
				out["network_view"] = defaultView
			}
		default:
			if _, ok := out["view"]; !ok {
				out["view"] = defaultView
			}
		}
	}
	return out, validate(t.name, out)
}

func validate(typ string, fields map[string]any) *wapiError {
	switch typ {
	case TypeNetwork:
		if v, ok := fields["network"]; ok {
			p, err := netip.ParsePrefix(fmt.Sprint(v))
			if err != nil || p.Masked() != p {
				return protoError("Invalid network '%v'", v)
			}
			fields["network"] = p.String()
		}
	case TypeA:
		if v, ok := fields["ipv4addr"]; ok {
			if a, err := netip.ParseAddr(fmt.Sprint(v)); err != nil || !a.Is4() {
				return protoError("Invalid IPv4 address '%v'", v)
			}
		}
	case TypeHost:
		if v, ok := fields["ipv4addrs"]; ok {
			list, ok := v.([]any)
			if !ok || len(list) == 0 {
				return protoError("Field 'ipv4addrs' must be a non-empty list")
			}
			for _, item := range list {
				m, _ := item.(map[string]any)
				if a, err := netip.ParseAddr(fmt.Sprint(m["ipv4addr"])); err != nil || !a.Is4() {
					return protoError("Invalid IPv4 address '%v'", m["ipv4addr"])
				}
			}
		}
	}
	return nil
}
