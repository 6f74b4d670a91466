package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"helixchain/config"
	"helixchain/core"
	"helixchain/crypto"
	"helixchain/native/common"
	"helixchain/native/loans"
	"helixchain/native/staking"
	"helixchain/observability"
	"helixchain/observability/logging"
	"helixchain/observability/metrics"
)

const genesisPathEnv = "HELIX_GENESIS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides HELIX_GENESIS and config GenesisFile)")
	keygen := flag.Bool("keygen", false, "Generate an account key, print it and exit")
	flag.Parse()

	if *keygen {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			fmt.Fprintln(os.Stderr, "key generation failed:", err)
			os.Exit(1)
		}
		fmt.Printf("private key: %x\n", key.Bytes())
		fmt.Printf("address:     %s\n", key.PubKey().Address())
		return
	}

	env := strings.TrimSpace(os.Getenv("HELIX_ENV"))
	logger := logging.Setup("helixd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	runtime := core.NewRuntime(core.SystemClock{}, logger)
	runtime.SetRequestQuota(common.Quota{
		MaxRequestsPerEpoch: cfg.Quota.MaxRequestsPerEpoch,
		MaxValuePerEpoch:    cfg.Quota.MaxValuePerEpoch,
		EpochSeconds:        cfg.Quota.EpochSeconds,
	})

	genesisPath := *genesisFlag
	if genesisPath == "" {
		genesisPath = strings.TrimSpace(os.Getenv(genesisPathEnv))
	}
	if genesisPath == "" {
		genesisPath = cfg.GenesisFile
	}
	if genesisPath != "" {
		genesis, err := config.LoadGenesis(genesisPath)
		if err != nil {
			logger.Error("failed to load genesis", "path", genesisPath, "err", err)
			os.Exit(1)
		}
		if err := genesis.Apply(runtime.State()); err != nil {
			logger.Error("failed to apply genesis", "err", err)
			os.Exit(1)
		}
		logger.Info("genesis applied", "path", genesisPath)
	}

	go serveMetrics(cfg.MetricsAddress, logger)

	logger.Info("helixd started",
		"network", cfg.NetworkName,
		"blockInterval", cfg.BlockIntervalSeconds)

	ticker := time.NewTicker(time.Duration(cfg.BlockIntervalSeconds) * time.Second)
	defer ticker.Stop()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var height uint64
	for {
		select {
		case <-ticker.C:
			height++
			if err := runtime.OnInitialize(height); err != nil {
				logger.Error("block hook failed", "height", height, "err", err)
				continue
			}
			recordBlockMetrics(runtime)
		case sig := <-stop:
			logger.Info("shutting down", "signal", sig.String())
			return
		}
	}
}

// recordBlockMetrics feeds the block's event log and reward pool state into
// the prometheus collectors.
func recordBlockMetrics(runtime *core.Runtime) {
	stakingMetrics := metrics.Staking()
	loanMetrics := metrics.Loans()

	manager := runtime.State()
	pausedAssets := 0
	for _, poolID := range manager.RewardPoolIDs() {
		pool, err := manager.GetRewardPool(poolID)
		if err != nil || pool == nil {
			continue
		}
		account := staking.PoolAccount(poolID)
		for asset := range pool.Rewards {
			if manager.PotIsEmpty(poolID, asset) {
				pausedAssets++
			}
			held, _ := new(big.Float).SetInt(manager.Ledger().BalanceOnHold(asset, account)).Float64()
			stakingMetrics.SetPotBalance(
				strconv.FormatUint(uint64(poolID), 10),
				strconv.FormatUint(uint64(asset), 10),
				held,
			)
		}
	}
	stakingMetrics.SetPausedRewardAssets(pausedAssets)

	for _, evt := range runtime.State().Events() {
		observability.Events().RecordEvent(evt.Type)
		switch evt.Type {
		case staking.EventTypeStaked:
			stakingMetrics.RecordStake(evt.Attributes["poolId"])
		case staking.EventTypeUnstaked:
			_, early := evt.Attributes["slash"]
			stakingMetrics.RecordUnstake(evt.Attributes["poolId"], early)
		case staking.EventTypeClaimed:
			stakingMetrics.RecordClaim(evt.Attributes["poolId"])
		case loans.EventTypeLoanActivated:
			loanMetrics.RecordActivation(evt.Attributes["market"])
		case loans.EventTypePaymentOnTime:
			loanMetrics.RecordOnTimePayment(evt.Attributes["market"])
		case loans.EventTypeLoanLiquidated:
			loanMetrics.RecordLiquidation(evt.Attributes["market"])
		case loans.EventTypeVaultRebalanced:
			loanMetrics.RecordRebalance(evt.Attributes["direction"])
		}
	}
}

func serveMetrics(address string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(address, mux); err != nil {
		logger.Error("metrics server stopped", "err", err)
	}
}
