package main

import "github.com/bridgewarden/bridgewarden/internal/cli"

func main() {
	cli.Execute()
}
