package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// StakingMetrics bundles collectors tracking reward pool health.
type StakingMetrics struct {
	stakes         *prometheus.CounterVec
	unstakes       *prometheus.CounterVec
	rewardsClaimed *prometheus.CounterVec
	pausedPools    prometheus.Gauge
	potBalance     *prometheus.GaugeVec
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

// Staking returns the lazily-initialised staking metrics registry.
func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			stakes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "helix",
				Subsystem: "staking",
				Name:      "stakes_total",
				Help:      "Count of stake operations segmented by pool.",
			}, []string{"pool"}),
			unstakes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "helix",
				Subsystem: "staking",
				Name:      "unstakes_total",
				Help:      "Count of unstake operations segmented by pool and earliness.",
			}, []string{"pool", "early"}),
			rewardsClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "helix",
				Subsystem: "staking",
				Name:      "rewards_claimed_total",
				Help:      "Count of reward claims segmented by pool.",
			}, []string{"pool"}),
			pausedPools: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "helix",
				Subsystem: "staking",
				Name:      "paused_reward_assets",
				Help:      "Number of pool reward assets currently paused on an empty pot.",
			}),
			potBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "helix",
				Subsystem: "staking",
				Name:      "pot_balance",
				Help:      "Held reward pot balance per pool and asset.",
			}, []string{"pool", "asset"}),
		}
		prometheus.MustRegister(
			stakingRegistry.stakes,
			stakingRegistry.unstakes,
			stakingRegistry.rewardsClaimed,
			stakingRegistry.pausedPools,
			stakingRegistry.potBalance,
		)
	})
	return stakingRegistry
}

// RecordStake increments the stake counter for a pool.
func (m *StakingMetrics) RecordStake(pool string) {
	if m == nil {
		return
	}
	m.stakes.WithLabelValues(labelID(pool)).Inc()
}

// RecordUnstake increments the unstake counter, tagging early exits.
func (m *StakingMetrics) RecordUnstake(pool string, early bool) {
	if m == nil {
		return
	}
	label := "false"
	if early {
		label = "true"
	}
	m.unstakes.WithLabelValues(labelID(pool), label).Inc()
}

// RecordClaim increments the claim counter for a pool.
func (m *StakingMetrics) RecordClaim(pool string) {
	if m == nil {
		return
	}
	m.rewardsClaimed.WithLabelValues(labelID(pool)).Inc()
}

// SetPausedRewardAssets updates the paused reward asset gauge.
func (m *StakingMetrics) SetPausedRewardAssets(count int) {
	if m == nil {
		return
	}
	m.pausedPools.Set(float64(count))
}

// SetPotBalance updates the held pot balance gauge.
func (m *StakingMetrics) SetPotBalance(pool, asset string, balance float64) {
	if m == nil {
		return
	}
	m.potBalance.WithLabelValues(labelID(pool), labelID(asset)).Set(balance)
}

// LoansMetrics bundles collectors tracking lending market health.
type LoansMetrics struct {
	loansActivated *prometheus.CounterVec
	paymentsOnTime *prometheus.CounterVec
	liquidations   *prometheus.CounterVec
	rebalances     *prometheus.CounterVec
}

var (
	loansOnce     sync.Once
	loansRegistry *LoansMetrics
)

// Loans returns the lazily-initialised lending metrics registry.
func Loans() *LoansMetrics {
	loansOnce.Do(func() {
		loansRegistry = &LoansMetrics{
			loansActivated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "helix",
				Subsystem: "loans",
				Name:      "activated_total",
				Help:      "Count of activated loans segmented by market.",
			}, []string{"market"}),
			paymentsOnTime: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "helix",
				Subsystem: "loans",
				Name:      "payments_on_time_total",
				Help:      "Count of installments collected on schedule.",
			}, []string{"market"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "helix",
				Subsystem: "loans",
				Name:      "liquidations_total",
				Help:      "Count of loans liquidated for missed payments.",
			}, []string{"market"}),
			rebalances: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "helix",
				Subsystem: "loans",
				Name:      "vault_rebalances_total",
				Help:      "Count of vault rebalance moves segmented by direction.",
			}, []string{"direction"}),
		}
		prometheus.MustRegister(
			loansRegistry.loansActivated,
			loansRegistry.paymentsOnTime,
			loansRegistry.liquidations,
			loansRegistry.rebalances,
		)
	})
	return loansRegistry
}

// RecordActivation increments the activation counter for a market.
func (m *LoansMetrics) RecordActivation(market string) {
	if m == nil {
		return
	}
	m.loansActivated.WithLabelValues(labelID(market)).Inc()
}

// RecordOnTimePayment increments the on-time payment counter.
func (m *LoansMetrics) RecordOnTimePayment(market string) {
	if m == nil {
		return
	}
	m.paymentsOnTime.WithLabelValues(labelID(market)).Inc()
}

// RecordLiquidation increments the liquidation counter.
func (m *LoansMetrics) RecordLiquidation(market string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(labelID(market)).Inc()
}

// RecordRebalance increments the rebalance counter for a direction.
func (m *LoansMetrics) RecordRebalance(direction string) {
	if m == nil {
		return
	}
	m.rebalances.WithLabelValues(labelID(direction)).Inc()
}

func labelID(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
