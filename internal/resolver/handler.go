package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/metrics"
)

const (
	VerbCreate   = "create"
	VerbQuery    = "query"
	VerbUpdate   = "update"
	VerbDelete   = "delete"
	VerbDownload = "download"
)

// Operation is one public CRUD function.
type Operation func(ctx context.Context, attrs instance.Attributes) Result

// Handler binds an operation to an entity type and verb.
type Handler struct {
	Entity string
	Verb   string
	Run    Operation
}

type Handlers []Handler

// Find looks up a handler case-insensitively.
func (hs Handlers) Find(entity, verb string) (Handler, bool) {
	entity = strings.ToLower(strings.TrimSpace(entity))
	verb = strings.ToLower(strings.TrimSpace(verb))
	for _, h := range hs {
		if h.Entity == entity && h.Verb == verb {
			return h, true
		}
	}
	return Handler{}, false
}

// CRUD builds the four standard handlers for one entity. Nil operations are skipped.
func CRUD(entity string, create, query, update, del Operation) Handlers {
	var hs Handlers
	for _, h := range []Handler{
		{Entity: entity, Verb: VerbCreate, Run: create},
		{Entity: entity, Verb: VerbQuery, Run: query},
		{Entity: entity, Verb: VerbUpdate, Run: update},
		{Entity: entity, Verb: VerbDelete, Run: del},
	} {
		if h.Run != nil {
			hs = append(hs, h)
		}
	}
	return hs
}

// Invoke runs the handler, converting a panic into an error result and counting the outcome.
func (h Handler) Invoke(ctx context.Context, connector string, attrs instance.Attributes) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Fail(&Error{Kind: KindVendor, Message: fmt.Sprintf("%s %s %s panicked: %v", connector, h.Entity, h.Verb, p)})
		}
		outcome := "ok"
		if res.IsError() {
			outcome = "error"
		}
		metrics.OperationsTotal.WithLabelValues(connector, h.Entity, h.Verb, outcome).Inc()
	}()
	if attrs == nil {
		attrs = instance.Attributes{}
	}
	return h.Run(ctx, attrs)
}
