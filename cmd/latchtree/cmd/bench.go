package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/latchtree/pkg/palm"
)

var (
	benchBatches   int
	benchBatchSize int
	benchWorkers   int
)

// benchCmd drives a local, in-process PALM engine to measure batch
// throughput, independent of the HTTP layer.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the PALM batched engine locally",
	Long: `Run a sequence of sequential-key write batches against a local PALM
engine and report throughput.

Example:
  latchtree bench --batches 100 --batch-size 200 --workers 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		workers := benchWorkers
		if workers == 0 {
			workers = cfg.Palm.Workers
		}
		engine := palm.NewEngine(workers, cfg.Palm.QueueDepth, cfg.Palm.NodeSize, cfg.Palm.MaxKeySize)
		defer engine.Shutdown()

		start := time.Now()
		total := 0
		for i := 0; i < benchBatches; i++ {
			b := palm.NewBatch()
			for j := 0; j < benchBatchSize; j++ {
				key := fmt.Sprintf("bench-%010d", i*benchBatchSize+j)
				b.AddWrite([]byte(key), uint64(i*benchBatchSize+j))
			}
			if err := engine.Execute(b); err != nil {
				return fmt.Errorf("execute batch %d: %w", i, err)
			}
			total += benchBatchSize
		}
		engine.Flush()
		elapsed := time.Since(start)

		fmt.Printf("%d ops across %d batches in %s (%.0f ops/sec)\n",
			total, benchBatches, elapsed, float64(total)/elapsed.Seconds())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().IntVar(&benchBatches, "batches", 100, "number of batches to submit")
	benchCmd.Flags().IntVar(&benchBatchSize, "batch-size", 200, "writes per batch")
	benchCmd.Flags().IntVar(&benchWorkers, "workers", 0, "PALM worker count (0 = use config)")
}
