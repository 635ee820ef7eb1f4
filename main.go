package main

import "cryptflow/internal/cli"

func main() {
	cli.Execute()
}
