package metrics

import (
	"context"
	"testing"
)

func TestStartServerDisabled(t *testing.T) {
	t.Parallel()

	for _, addr := range []string{"", "  ", "off", "Disabled", "false"} {
		srv, errCh := StartServer(context.Background(), addr)
		if srv != nil || errCh != nil {
			t.Fatalf("StartServer(%q) = %v, %v; want nil, nil", addr, srv, errCh)
		}
	}
}
