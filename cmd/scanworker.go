package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/andrewramsay/clueweb-tools-go/internal/protocol"
	"github.com/andrewramsay/clueweb-tools-go/internal/scan"
)

var (
	workerCoordAddr     string
	workerOutput        string
	workerBatchSize     int
	workerJobID         string
	workerAutoResetFlag bool
)

var scanWorkerCmd = &cobra.Command{
	Use:   "scan-worker",
	Short: "Run a static scan worker requesting batches from the coordinator (C5)",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger("scan-worker")
		jobID := workerJobID
		if jobID == "" {
			jobID = "scan-" + uuid.NewString()
		}

		shard, err := scan.CreateShard(workerOutput)
		if err != nil {
			return err
		}
		defer shard.Close()

		for {
			reply, err := protocol.Request(workerCoordAddr, protocol.Message{
				Type:      protocol.NewJob,
				JobID:     jobID,
				WantFiles: workerBatchSize,
			}, 30*time.Second)
			if err != nil {
				return fmt.Errorf("scan-worker: requesting batch: %w", err)
			}
			if len(reply.BatchPaths) == 0 {
				log.Infow("no files remaining, exiting", "job", jobID)
				return nil
			}

			success := true
			for _, path := range reply.BatchPaths {
				records, err := scan.ScanFile(path)
				if err != nil {
					log.Errorw("scan failed", "path", path, "error", err)
					success = false
					if !workerAutoResetFlag {
						break
					}
					continue
				}
				for _, r := range records {
					if err := shard.WriteRecord(r); err != nil {
						log.Errorw("shard write failed", "path", path, "error", err)
						success = false
						break
					}
				}
			}

			if _, err := protocol.Request(workerCoordAddr, protocol.Message{
				Type:     protocol.Finished,
				JobID:    jobID,
				NumFiles: len(reply.BatchPaths),
				Success:  success,
			}, 30*time.Second); err != nil {
				return fmt.Errorf("scan-worker: reporting finished: %w", err)
			}
			log.Infow("batch complete", "job", jobID, "files", len(reply.BatchPaths), "success", success)
			if !success {
				return fmt.Errorf("scan-worker: batch for job %s failed; its files stay IN_PROGRESS until the job is reset", jobID)
			}
		}
	},
}

func init() {
	scanWorkerCmd.Flags().StringVar(&workerCoordAddr, "coordinator", "localhost:23456", "coordinator jobs address")
	scanWorkerCmd.Flags().StringVar(&workerOutput, "output", "", "path to this worker's output CSV shard")
	scanWorkerCmd.Flags().IntVar(&workerBatchSize, "batch-size", 10, "number of files to request per batch")
	scanWorkerCmd.Flags().StringVar(&workerJobID, "job-id", "", "job ID to report to the coordinator (defaults to a generated UUID)")
	scanWorkerCmd.Flags().BoolVar(&workerAutoResetFlag, "auto-reset-on-error", false,
		"keep scanning the rest of a batch after one file fails, instead of aborting it (Open Question #1)")
	scanWorkerCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(scanWorkerCmd)
}
