package main

import (
	"github.com/warden-sh/warden/internal/cli"
)

func main() {
	cli.Execute()
}
