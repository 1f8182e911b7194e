package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveWrite(t *testing.T) {
	writes := testutil.ToFloat64(StoreWrites.WithLabelValues(StoreRelational, KindMonthly))
	failures := testutil.ToFloat64(StoreWriteErrors.WithLabelValues(StoreRelational, KindMonthly))

	ObserveWrite(StoreRelational, KindMonthly, time.Now(), nil)
	ObserveWrite(StoreRelational, KindMonthly, time.Now(), errors.New("connection reset"))

	if got := testutil.ToFloat64(StoreWrites.WithLabelValues(StoreRelational, KindMonthly)) - writes; got != 2 {
		t.Errorf("writes = %v, expected 2", got)
	}
	if got := testutil.ToFloat64(StoreWriteErrors.WithLabelValues(StoreRelational, KindMonthly)) - failures; got != 1 {
		t.Errorf("write errors = %v, expected 1", got)
	}
}
