package main

import (
	"github.com/vporokh/go-tank-metrics/cmd"
)

func main() {
	cmd.Execute()
}
