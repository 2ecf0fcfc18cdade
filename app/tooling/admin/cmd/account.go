package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var (
	accountNumber   string
	accountCurrency string
	accountID       string
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage ledger accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a new account",
	Run: func(cmd *cobra.Command, args []string) {
		body := struct {
			Number   string `json:"account_number"`
			Currency string `json:"currency"`
		}{
			Number:   accountNumber,
			Currency: accountCurrency,
		}

		if err := post("/v1/accounts", body); err != nil {
			log.Fatal(err)
		}
	},
}

var accountGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Retrieve an account by id",
	Run: func(cmd *cobra.Command, args []string) {
		if err := get("/v1/accounts/" + accountID); err != nil {
			log.Fatal(err)
		}
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	Run: func(cmd *cobra.Command, args []string) {
		if err := get("/v1/accounts"); err != nil {
			log.Fatal(err)
		}
	},
}

var accountTransCmd = &cobra.Command{
	Use:   "trans",
	Short: "List the transactions touching an account",
	Run: func(cmd *cobra.Command, args []string) {
		if err := get("/v1/accounts/" + accountID + "/transactions"); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountCreateCmd, accountGetCmd, accountListCmd, accountTransCmd)

	accountCreateCmd.Flags().StringVarP(&accountNumber, "number", "n", "", "Account number.")
	accountCreateCmd.Flags().StringVarP(&accountCurrency, "currency", "c", "USD", "Account currency.")
	accountGetCmd.Flags().StringVarP(&accountID, "id", "i", "", "Account id.")
	accountTransCmd.Flags().StringVarP(&accountID, "id", "i", "", "Account id.")
}
