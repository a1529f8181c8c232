// cmd/candorc/main.go
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"candor/internal/ast"
	"candor/internal/hir"
	"candor/internal/parser"
)

const version = "0.1.0"

var commandAliases = map[string]string{
	"p": "parse",
	"h": "hir",
	"v": "version",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Println("candorc " + version)
	case "parse":
		runParse(args[1:])
	case "hir":
		runHIR(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "candorc: unknown command %q\n\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`candorc - Candor compilation front-half driver

Usage:
  candorc parse <file>   parse source and print its AST
  candorc hir <file>     parse, build HIR, and print its dump
  candorc version        print the version

Reads from stdin when <file> is omitted or "-".`)
}

func runParse(args []string) {
	source, err := readSource(args)
	if err != nil {
		fail(err)
	}
	root, err := parser.Parse(source)
	if err != nil {
		fail(err)
	}
	dumpAST(os.Stdout, root, 0)
}

func runHIR(args []string) {
	source, err := readSource(args)
	if err != nil {
		fail(err)
	}
	root, err := parser.Parse(source)
	if err != nil {
		fail(err)
	}
	prog, err := hir.Build(root)
	if err != nil {
		fail(err)
	}

	out := hir.Dump(prog.Blocks)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		printDecorated(out)
		return
	}
	fmt.Print(out)
}

// printDecorated wraps the byte-exact dump with ANSI block separators when
// writing to a terminal; a non-TTY (including the test suite, which reads
// candorc's stdout through a pipe) always gets the plain dump untouched.
func printDecorated(dump string) {
	const (
		dim   = "\x1b[2m"
		reset = "\x1b[0m"
	)
	for _, line := range splitLines(dump) {
		if line == "--------" {
			fmt.Println(dim + line + reset)
			continue
		}
		fmt.Println(line)
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func readSource(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(args[0])
	return string(b), err
}

func dumpAST(w io.Writer, n *ast.Node, depth int) {
	if n == nil {
		return
	}
	for i := 0; i < depth; i++ {
		fmt.Fprint(w, "  ")
	}
	if n.Lexeme != "" {
		fmt.Fprintf(w, "%s %q\n", n.Kind, n.Lexeme)
	} else if n.Op != "" {
		fmt.Fprintf(w, "%s %s\n", n.Kind, n.Op)
	} else {
		fmt.Fprintf(w, "%s\n", n.Kind)
	}
	for _, c := range n.Children {
		dumpAST(w, c, depth+1)
	}
	for i := range n.Keys {
		dumpAST(w, n.Keys[i], depth+1)
		dumpAST(w, n.Values[i], depth+1)
	}
	for _, a := range n.Args {
		dumpAST(w, a, depth+1)
	}
	dumpAST(w, n.Body, depth+1)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "candorc: %v\n", err)
	os.Exit(1)
}
