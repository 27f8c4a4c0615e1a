package main

import "github.com/dgallion1/docanalyze/internal/cli"

func main() {
	cli.Execute()
}
