package main

import "bookbite/internal/cli"

func main() {
	cli.Execute()
}
