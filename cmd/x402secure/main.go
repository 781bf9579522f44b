package main

import "github.com/vitwit/x402-secure/cli"

func main() {
	cli.Execute()
}
