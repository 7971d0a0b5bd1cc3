package main

import "github.com/vietddude/edgesync/internal/cli"

func main() {
	cli.Execute()
}
