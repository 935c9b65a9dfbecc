package main

import "quizsolver/presentation/cli"

func main() {
	cli.Execute()
}
