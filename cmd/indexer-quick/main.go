package main

import (
	"github.com/nodo1014/indexer-quick/internal/cli"
)

func main() {
	cli.Run()
}
