package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var (
	fromAccount string
	toAccount   string
	amount      string
	memo        string
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Move money between two accounts",
	Run: func(cmd *cobra.Command, args []string) {
		body := struct {
			From   string `json:"from_account_id"`
			To     string `json:"to_account_id"`
			Amount string `json:"amount"`
			Memo   string `json:"memo,omitempty"`
		}{
			From:   fromAccount,
			To:     toAccount,
			Amount: amount,
			Memo:   memo,
		}

		if err := post("/v1/transfers", body); err != nil {
			log.Fatal(err)
		}
	},
}

var depositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Credit money into an account",
	Run: func(cmd *cobra.Command, args []string) {
		body := struct {
			To     string `json:"to_account_id"`
			Amount string `json:"amount"`
			Memo   string `json:"memo,omitempty"`
		}{
			To:     toAccount,
			Amount: amount,
			Memo:   memo,
		}

		if err := post("/v1/deposits", body); err != nil {
			log.Fatal(err)
		}
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Debit money out of an account",
	Run: func(cmd *cobra.Command, args []string) {
		body := struct {
			From   string `json:"from_account_id"`
			Amount string `json:"amount"`
			Memo   string `json:"memo,omitempty"`
		}{
			From:   fromAccount,
			Amount: amount,
			Memo:   memo,
		}

		if err := post("/v1/withdrawals", body); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(transferCmd, depositCmd, withdrawCmd)

	for _, c := range []*cobra.Command{transferCmd, withdrawCmd} {
		c.Flags().StringVarP(&fromAccount, "from", "f", "", "Source account id.")
	}
	for _, c := range []*cobra.Command{transferCmd, depositCmd} {
		c.Flags().StringVarP(&toAccount, "to", "t", "", "Destination account id.")
	}
	for _, c := range []*cobra.Command{transferCmd, depositCmd, withdrawCmd} {
		c.Flags().StringVarP(&amount, "amount", "m", "0", "Amount to move.")
		c.Flags().StringVar(&memo, "memo", "", "Optional memo.")
	}
}
