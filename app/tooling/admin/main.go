// This program provides admin tooling for the ledger service: key
// generation, account and validator management and chain inspection.
package main

import "github.com/minibank/ledger/app/tooling/admin/cmd"

func main() {
	cmd.Execute()
}
