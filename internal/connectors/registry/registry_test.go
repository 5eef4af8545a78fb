package registry

import (
	"testing"
	"time"

	"github.com/open-sspm/resolvers/internal/config"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/poller"
	"github.com/open-sspm/resolvers/internal/resolver"
)

type fakeDefinition struct {
	kind string
	keys []string
}

func (f fakeDefinition) Kind() string        { return f.kind }
func (f fakeDefinition) DisplayName() string { return f.kind }
func (f fakeDefinition) IsConfigured(get func(string) string) bool {
	return AllSet(get, f.keys...)
}
func (f fakeDefinition) New(Deps) (Connector, error) { return fakeConnector{kind: f.kind}, nil }

type fakeConnector struct{ kind string }

func (c fakeConnector) Kind() string                                  { return c.kind }
func (c fakeConnector) Handlers() resolver.Handlers                   { return nil }
func (c fakeConnector) Pollers(instance.Subscriber) []*poller.Poller { return nil }

func TestRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.Register(fakeDefinition{kind: "Zoom"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(fakeDefinition{kind: "zoom"}); err == nil {
		t.Fatal("expected duplicate kind error")
	}
	if err := reg.Register(fakeDefinition{kind: " "}); err == nil {
		t.Fatal("expected empty kind error")
	}
	if _, ok := reg.Get(" ZOOM "); !ok {
		t.Fatal("Get is not case-insensitive")
	}
}

func TestSelectDefaultsToConfigured(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_ = reg.Register(fakeDefinition{kind: "stripe", keys: []string{"STRIPE_SECRET_KEY"}})
	_ = reg.Register(fakeDefinition{kind: "zoom", keys: []string{"ZOOM_ACCOUNT_ID"}})
	deps := Deps{Env: config.MapEnv(map[string]string{"STRIPE_SECRET_KEY": "sk"})}

	defs, err := reg.Select(deps, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(defs) != 1 || defs[0].Kind() != "stripe" {
		t.Fatalf("Select = %v, want [stripe]", defs)
	}

	defs, err = reg.Select(deps, []string{"zoom"})
	if err != nil || len(defs) != 1 {
		t.Fatalf("Select(zoom) = %v, %v", defs, err)
	}
	if _, err := reg.Select(deps, []string{"nope"}); err == nil {
		t.Fatal("expected unknown connector error")
	}

	states := reg.States(deps)
	if states[0].StatusLabel() != "Configured" || states[1].StatusLabel() != "Not configured" {
		t.Fatalf("states = %+v", states)
	}
}

func TestDepsIntervalOverride(t *testing.T) {
	t.Parallel()

	deps := Deps{Env: config.MapEnv(map[string]string{"ZOOM_POLL_INTERVAL_MINUTES": "3"})}
	if got := deps.Interval("zoom", "ZOOM_POLL_INTERVAL_MINUTES", time.Hour); got != 3*time.Minute {
		t.Fatalf("Interval = %s, want 3m", got)
	}
	deps.PollIntervalOverride = time.Second
	if got := deps.Interval("zoom", "ZOOM_POLL_INTERVAL_MINUTES", time.Hour); got != time.Second {
		t.Fatalf("Interval = %s, want override", got)
	}
}
