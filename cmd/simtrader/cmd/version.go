package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the simtrader CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("simtrader version %s\n", version)
		fmt.Println("A simulated FX broker with a live random-walk price feed")
		fmt.Println("https://github.com/fxlab/simtrader")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
