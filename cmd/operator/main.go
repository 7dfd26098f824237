// Command operator runs the rollup operator's sequencer core standalone: it
// loads configuration and a genesis file, wires the mempool, priority queue
// and block builder together, and exposes a small set of operational
// subcommands (run the sequencer loop, submit a tx, inspect pending work,
// replay a block).
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rollup-operator/core"
	pkgconfig "rollup-operator/pkg/config"
)

var (
	log     = logrus.StandardLogger()
	envFlag string
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "operator",
		Short: "rollup-operator sequencer core",
	}
	root.PersistentFlags().StringVar(&envFlag, "env", "", "config environment overlay to merge (e.g. \"bootstrap\")")

	root.AddCommand(runCmd, submitTxCmd, mempoolCmd, priorityCmd, replayCmd)

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("operator: command failed")
		os.Exit(1)
	}
}

// bootstrap is everything a live subcommand needs: the loaded config, the
// genesis-seeded (or, once persistence is wired, restored) state, and the
// shared mempool/priority-queue/builder triple that owns it.
type bootstrap struct {
	cfg       *pkgconfig.OperatorConfig
	builder   *core.Builder
	mempool   *core.Mempool
	priority  *core.PriorityQueue
	verifier  core.SignatureVerifier
	store     *core.FileStore
}

func loadBootstrap() (*bootstrap, error) {
	cfg, err := pkgconfig.Load(envFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	genesisPath := cfg.Genesis.File
	if genesisPath == "" {
		genesisPath = "cmd/config/genesis.yaml"
	}
	data, err := os.ReadFile(genesisPath)
	if err != nil {
		return nil, fmt.Errorf("read genesis %s: %w", genesisPath, err)
	}
	genesis, err := core.LoadGenesis(data)
	if err != nil {
		return nil, err
	}
	state, feeAccountID, err := genesis.Build()
	if err != nil {
		return nil, fmt.Errorf("build genesis state: %w", err)
	}

	verifier := core.NewEthereumSignatureVerifier()
	mempool := core.NewMempool(cfg.MempoolTTL(), newBigFromUint64(cfg.Rollup.MinFee), verifier)
	pq := core.NewPriorityQueue()
	builder := core.NewBuilder(state, mempool, pq, verifier, feeAccountID, cfg.Rollup.SupportedBlockChunkSizes)

	store, err := core.NewFileStore(cfg.Storage.JournalDir, log)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	sink := core.NewLogSink(log)
	builder.SetCollaborators(sink, store)

	return &bootstrap{cfg: cfg, builder: builder, mempool: mempool, priority: pq, verifier: verifier, store: store}, nil
}
