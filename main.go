package main

import (
	"os"

	"grimm.is/aliasync/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
