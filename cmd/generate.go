package cmd

import (
	"github.com/spf13/cobra"

	"github.com/andrewramsay/clueweb-tools-go/internal/filestate"
)

var (
	genRoot   string
	genOutput string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Walk a ClueWeb22 root and build the file-state catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger("generate")
		return filestate.Generate(genRoot, genOutput, log)
	},
}

func init() {
	generateCmd.Flags().StringVar(&genRoot, "root", "", "ClueWeb22 corpus root directory")
	generateCmd.Flags().StringVar(&genOutput, "output", "", "path to the new file-state SQLite database")
	generateCmd.MarkFlagRequired("root")
	generateCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(generateCmd)
}
