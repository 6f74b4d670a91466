package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStakingGaugesReportSetValues(t *testing.T) {
	m := Staking()

	m.SetPausedRewardAssets(3)
	require.Equal(t, 3.0, testutil.ToFloat64(m.pausedPools))
	m.SetPausedRewardAssets(0)
	require.Equal(t, 0.0, testutil.ToFloat64(m.pausedPools))

	m.SetPotBalance("1", "4", 250)
	require.Equal(t, 250.0, testutil.ToFloat64(m.potBalance.WithLabelValues("1", "4")))
}

func TestNilRegistriesAreNoOps(t *testing.T) {
	var s *StakingMetrics
	s.SetPausedRewardAssets(1)
	s.SetPotBalance("1", "1", 1)
	s.RecordStake("1")

	var l *LoansMetrics
	l.RecordRebalance("deposit")
}
