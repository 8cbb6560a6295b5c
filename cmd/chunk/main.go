package main

import "chunk/internal/cli"

func main() {
	cli.Execute()
}
