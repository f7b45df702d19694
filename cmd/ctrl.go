package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrewramsay/clueweb-tools-go/internal/protocol"
)

var ctrlAddr string

var ctrlCmd = &cobra.Command{
	Use:   "ctrl",
	Short: "Send control commands to a running coordinator or supervisor",
}

var ctrlResetJobCmd = &cobra.Command{
	Use:   "reset-job <job-id>",
	Short: "Reset a job's leased-but-unfinished batch back to NOT_STARTED (coordinator)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := protocol.Request(ctrlAddr, protocol.Message{Type: protocol.ResetJob, JobID: args[0]}, 10*time.Second)
		if err != nil {
			return err
		}
		fmt.Println(reply.Type)
		return nil
	},
}

var ctrlExitCmd = &cobra.Command{
	Use:   "exit",
	Short: "Tell a running coordinator to stop its event loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := protocol.Request(ctrlAddr, protocol.Message{Type: protocol.Exit}, 10*time.Second)
		if err != nil {
			return err
		}
		fmt.Println(reply.Type)
		return nil
	},
}

var ctrlPauseCmd = &cobra.Command{
	Use:   "pause-worker <index>",
	Short: "Pause one worker in a running supervisor's pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendWorkerControl(protocol.PauseWorker, args[0])
	},
}

var ctrlResumeCmd = &cobra.Command{
	Use:   "resume-worker <index>",
	Short: "Resume one worker in a running supervisor's pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendWorkerControl(protocol.ResumeWorker, args[0])
	},
}

func sendWorkerControl(t protocol.Type, indexArg string) error {
	var idx int
	if _, err := fmt.Sscanf(indexArg, "%d", &idx); err != nil {
		return fmt.Errorf("ctrl: invalid worker index %q: %w", indexArg, err)
	}
	reply, err := protocol.Request(ctrlAddr, protocol.Message{Type: t, WorkerIndex: idx}, 10*time.Second)
	if err != nil {
		return err
	}
	fmt.Println(reply.Type)
	return nil
}

func init() {
	ctrlCmd.PersistentFlags().StringVar(&ctrlAddr, "addr", "localhost:23457", "control address of the coordinator or supervisor")
	ctrlCmd.AddCommand(ctrlResetJobCmd, ctrlExitCmd, ctrlPauseCmd, ctrlResumeCmd)
	rootCmd.AddCommand(ctrlCmd)
}
