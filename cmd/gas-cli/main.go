package main

import "gas-station/cmd/gas-cli/cmd"

func main() {
	cmd.Execute()
}
