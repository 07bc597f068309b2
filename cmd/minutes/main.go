package main

import "github.com/forPelevin/minutes/internal/cli"

func main() {
	cli.Main()
}
