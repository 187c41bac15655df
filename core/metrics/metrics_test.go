package metrics_test

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/metrics"
)

func TestBoundary(t *testing.T) {
	errDomain := errors.New("domain")
	errStorage := errors.New("connection refused")

	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantCounted   float64
	}{
		{name: "nil", err: nil},
		{name: "domain error", err: pkgerrors.Wrap(errDomain, "ctx")},
		{name: "forbidden", err: core.ErrForbidden},
		{name: "storage error", err: pkgerrors.Wrap(errStorage, "querying"), wantTransient: true, wantCounted: 1},
		{name: "already transient", err: core.NewTransientError(errStorage), wantTransient: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := metrics.StorageTransientErrorsTotal.WithLabelValues("test." + tt.name)
			before := promtestutil.ToFloat64(counter)

			err := metrics.Boundary("test."+tt.name, tt.err, errDomain)
			assert.Equal(t, tt.wantTransient, core.IsTransient(err))
			assert.Equal(t, tt.wantCounted, promtestutil.ToFloat64(counter)-before)
		})
	}
}
