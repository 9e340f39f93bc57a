package main

import "github.com/backbone81/txnlog/cmd/txnlog-cli/cmd"

func main() {
	cmd.Execute()
}
