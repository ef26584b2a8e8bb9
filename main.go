package main

import "github.com/inkwell-network/inkwell-node/internal/cmd"

func main() {
	cmd.Execute()
}
