package cmd

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var keyFile string

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a validator key pair",
	Run:   genkeyRun,
}

func init() {
	rootCmd.AddCommand(genkeyCmd)
	genkeyCmd.Flags().StringVarP(&keyFile, "file", "f", "validator.ecdsa", "Path to write the private key.")
}

func genkeyRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		log.Fatal(err)
	}

	if err := crypto.SaveECDSA(keyFile, privateKey); err != nil {
		log.Fatal(err)
	}

	fmt.Println("key file:", keyFile)
	fmt.Println("public key:", crypto.PubkeyToAddress(privateKey.PublicKey).String())
}
