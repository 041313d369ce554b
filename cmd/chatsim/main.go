package main

import "github.com/testsabirweb/chatsim/internal/cli"

func main() {
	cli.Execute()
}
