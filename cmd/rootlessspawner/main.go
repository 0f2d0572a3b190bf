package main

import (
	"github.com/chris-x86-64/rootlessspawner/internal/cli"
	"github.com/chris-x86-64/rootlessspawner/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
