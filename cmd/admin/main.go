// Command admin is the operator CLI: live state and abort over the server's
// loopback admin endpoints, plus offline queries against the sqlite index.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "state":
			stateCmd(os.Args[2:])
			return
		case "abort":
			abortCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin <state|abort|db> [flags]")
	os.Exit(2)
}
