package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rpattn/crmimport/internal/domain"
)

func TestRegistryCountsRows(t *testing.T) {
	reg := NewRegistry()
	reg.ObserveRow(domain.ResultCreated)
	reg.ObserveRow(domain.ResultCreated)
	reg.ObserveRow(domain.ResultError)

	if got := testutil.ToFloat64(reg.RowsTotal.WithLabelValues("Created")); got != 2 {
		t.Fatalf("expected 2 created rows, got %v", got)
	}
	if got := testutil.ToFloat64(reg.RowsTotal.WithLabelValues("Error")); got != 1 {
		t.Fatalf("expected 1 error row, got %v", got)
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var reg *Registry
	reg.ObserveRow(domain.ResultCreated)
	reg.ObserveRun(time.Second)
	reg.ObserveRemoteCall("crm.contact.add", "200", time.Millisecond)
	reg.ObserveHTTPRequest("/healthz", "GET", "200")
	if reg.Handler() == nil {
		t.Fatalf("expected a handler from nil registry")
	}
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()
	a.ObserveRun(time.Second)
	if got := testutil.ToFloat64(b.RunsTotal); got != 0 {
		t.Fatalf("expected independent registries, got %v", got)
	}
}
