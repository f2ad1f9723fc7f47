package main

import "github.com/remedy-project/remedy/internal/cli"

func main() {
	cli.Execute()
}
