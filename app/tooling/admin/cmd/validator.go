package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

var (
	validatorName     string
	validatorKey      string
	validatorPriority int
	validatorNodeURL  string
)

var validatorCmd = &cobra.Command{
	Use:   "validator",
	Short: "Manage the authority validator set",
}

var validatorAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Admit a validator to the set",
	Run: func(cmd *cobra.Command, args []string) {
		body := struct {
			Name      string `json:"validator_name"`
			PublicKey string `json:"public_key"`
			Priority  int    `json:"priority"`
			NodeURL   string `json:"node_url,omitempty"`
		}{
			Name:      validatorName,
			PublicKey: validatorKey,
			Priority:  validatorPriority,
			NodeURL:   validatorNodeURL,
		}

		if err := post("/v1/validators", body); err != nil {
			log.Fatal(err)
		}
	},
}

var validatorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the validator set",
	Run: func(cmd *cobra.Command, args []string) {
		if err := get("/v1/validators"); err != nil {
			log.Fatal(err)
		}
	},
}

var validatorRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Permanently revoke a validator's authority",
	Run: func(cmd *cobra.Command, args []string) {
		if err := send(http.MethodDelete, "/v1/validators/"+validatorName, nil); err != nil {
			log.Fatal(err)
		}
	},
}

var validatorPriorityCmd = &cobra.Command{
	Use:   "priority",
	Short: "Change a validator's selection priority",
	Run: func(cmd *cobra.Command, args []string) {
		body := struct {
			Priority int `json:"priority"`
		}{
			Priority: validatorPriority,
		}

		path := fmt.Sprintf("/v1/validators/%s/priority", validatorName)
		if err := send(http.MethodPut, path, body); err != nil {
			log.Fatal(err)
		}
	},
}

var validatorHeartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Record a liveness signal for a validator",
	Run: func(cmd *cobra.Command, args []string) {
		path := fmt.Sprintf("/v1/validators/%s/heartbeat", validatorName)
		if err := post(path, nil); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(validatorCmd)
	validatorCmd.AddCommand(validatorAddCmd, validatorListCmd, validatorRevokeCmd, validatorPriorityCmd, validatorHeartbeatCmd)

	validatorCmd.PersistentFlags().StringVarP(&validatorName, "name", "n", "", "Validator name.")
	validatorAddCmd.Flags().StringVarP(&validatorKey, "key", "k", "", "Validator public key.")
	validatorAddCmd.Flags().IntVarP(&validatorPriority, "priority", "p", 0, "Selection priority.")
	validatorAddCmd.Flags().StringVar(&validatorNodeURL, "node-url", "", "Validator node url.")
	validatorPriorityCmd.Flags().IntVarP(&validatorPriority, "priority", "p", 0, "Selection priority.")
}
