package main

import (
	"os"

	"github.com/malbeclabs/datachat/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
