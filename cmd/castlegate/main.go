package main

import (
	"github.com/castlegate/castlegate/internal/cli"
)

func main() {
	cli.Execute()
}
