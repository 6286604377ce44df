package main

import (
	"github.com/runshield/bashx/internal/ast"
	"github.com/runshield/bashx/internal/cli"
)

func main() {
	ast.InitGrammar()
	cli.Execute()
}
