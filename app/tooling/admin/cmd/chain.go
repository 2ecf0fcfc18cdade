package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var blockNumber string

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Inspect and verify the chain",
}

var chainBlocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List the sealed blocks",
	Run: func(cmd *cobra.Command, args []string) {
		if err := get("/v1/chain/blocks"); err != nil {
			log.Fatal(err)
		}
	},
}

var chainBlockCmd = &cobra.Command{
	Use:   "block",
	Short: "Retrieve a block by number",
	Run: func(cmd *cobra.Command, args []string) {
		if err := get("/v1/chain/blocks/" + blockNumber); err != nil {
			log.Fatal(err)
		}
	},
}

var chainVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the whole chain",
	Run: func(cmd *cobra.Command, args []string) {
		if err := get("/v1/chain/verify"); err != nil {
			log.Fatal(err)
		}
	},
}

var chainSealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Signal the worker to seal the current batch",
	Run: func(cmd *cobra.Command, args []string) {
		if err := post("/v1/chain/seal", nil); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(chainCmd)
	chainCmd.AddCommand(chainBlocksCmd, chainBlockCmd, chainVerifyCmd, chainSealCmd)

	chainBlockCmd.Flags().StringVarP(&blockNumber, "number", "n", "latest", "Block number or 'latest'.")
}
