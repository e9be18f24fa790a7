package wallet

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetrics_Registration tests all metrics are initialized
func TestMetrics_Registration(t *testing.T) {
	if NativeBalance == nil {
		t.Error("NativeBalance not registered")
	}

	if PrimaryBalance == nil {
		t.Error("PrimaryBalance not registered")
	}

	if SecondaryBalance == nil {
		t.Error("SecondaryBalance not registered")
	}

	if StakedBalance == nil {
		t.Error("StakedBalance not registered")
	}

	if StakingAPR == nil {
		t.Error("StakingAPR not registered")
	}

	if UpdateErrorsTotal == nil {
		t.Error("UpdateErrorsTotal not registered")
	}

	if UpdateDuration == nil {
		t.Error("UpdateDuration not registered")
	}

	if LastUpdateTimestamp == nil {
		t.Error("LastUpdateTimestamp not registered")
	}
}

// TestMetrics_CounterIncrement tests counter can be incremented
func TestMetrics_CounterIncrement(t *testing.T) {
	before := testutil.ToFloat64(UpdateErrorsTotal)
	UpdateErrorsTotal.Inc()
	after := testutil.ToFloat64(UpdateErrorsTotal)

	if after != before+1 {
		t.Errorf("UpdateErrorsTotal = %v, want %v", after, before+1)
	}
}
