// Package cmd holds the CLI entrypoints.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "presente",
	Short: "Classroom attendance through face recognition",
	Long: `Presente records classroom attendance automatically: a camera watches
the room, faces are matched against enrolled students, and presence or
tardiness is registered against the academic session active right now.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
