package main

import "github.com/nfrund/actwatch/cmd/actwatch-cli/cmd"

func main() {
	cmd.Execute()
}
