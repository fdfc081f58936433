// cmd/rebolcore/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"rebolcore/internal/eval"
	"rebolcore/internal/port"
	"rebolcore/internal/repl"
	"rebolcore/internal/scan"
	"rebolcore/internal/symtab"
)

const VERSION = "0.1.0"

// Build variables - can be set during build with ldflags
var (
	BuildDate = time.Now().Format("2006-01-02")
	GitCommit = "unknown"
)

// Command aliases mapping
var commandAliases = map[string]string{
	"r": "run",
	"i": "repl",
	"c": "check",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
		args[0] = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		showVersion()
	case "repl":
		repl.Start(os.Stdin, os.Stdout)
	case "run":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: rebolcore run <file.reb>")
			os.Exit(1)
		}
		runFile(args[1])
	case "check":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: rebolcore check <file.reb>")
			os.Exit(1)
		}
		checkSyntax(args[1])
	default:
		suggestCommand(cmd)
	}
}

// runFile loads, binds, and evaluates one script file against a fresh
// Interp with port access installed. The script's final value is not
// printed; only what the script itself writes reaches stdout, and an
// error goes to stderr with a non-zero exit status.
func runFile(filename string) {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read file: %v\n", err)
		os.Exit(1)
	}

	ip := eval.New(os.Stdout)
	port.NewNatives().Install(ip)

	sc := scan.New(string(source), ip.Tab)
	src, err := sc.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", filename, err)
		os.Exit(1)
	}

	if _, err := ip.DoTopLevel(context.Background(), src); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", filename, err)
		os.Exit(1)
	}
}

// checkSyntax scans filename without evaluating it, the same
// load-only pass DoTopLevel's bind step would otherwise perform first,
// reporting only malformed source (unbalanced blocks, bad literals).
func checkSyntax(filename string) {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read file: %v\n", err)
		os.Exit(1)
	}

	tab := symtab.New()
	sc := scan.New(string(source), tab)
	if _, err := sc.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", filename, err)
		os.Exit(1)
	}
	fmt.Printf("%s: syntax is valid\n", filename)
}

func showUsage() {
	fmt.Println("rebolcore - a homoiconic, dynamically-typed core interpreter")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  rebolcore run <file.reb>    Run a script                (alias: r)")
	fmt.Println("  rebolcore check <file.reb>  Check syntax without running (alias: c)")
	fmt.Println("  rebolcore repl              Start the interactive REPL  (alias: i)")
	fmt.Println("  rebolcore version           Show version information")
	fmt.Println("  rebolcore help              Show this message")
	fmt.Println()
	fmt.Println("Scripts may open ports against the dbport, wsport, and pcapport")
	fmt.Println("schemes with OPEN, e.g. open \"file:data.txt\" or")
	fmt.Println("open \"dbport://mydb?driver=sqlite&dsn=file:test.db\"")
}

func showVersion() {
	fmt.Printf("rebolcore %s\n", VERSION)
	fmt.Printf("build date: %s\n", BuildDate)
	if GitCommit != "unknown" {
		fmt.Printf("git commit: %s\n", GitCommit)
	}
}

func suggestCommand(cmd string) {
	allCommands := []string{"run", "repl", "check", "help", "version"}

	fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", cmd)

	suggestions := findSimilarCommands(cmd, allCommands, 2)
	if len(suggestions) > 0 {
		fmt.Fprintln(os.Stderr, "\nDid you mean one of these?")
		for _, s := range suggestions {
			alias := ""
			for a, full := range commandAliases {
				if full == s {
					alias = fmt.Sprintf(" (alias: %s)", a)
					break
				}
			}
			fmt.Fprintf(os.Stderr, "  rebolcore %s%s\n", s, alias)
		}
	}
	fmt.Fprintln(os.Stderr, "\nRun 'rebolcore help' to see all available commands")
	os.Exit(1)
}

func findSimilarCommands(input string, commands []string, maxDistance int) []string {
	var similar []string
	for _, cmd := range commands {
		if levenshteinDistance(input, cmd) <= maxDistance {
			similar = append(similar, cmd)
		}
	}
	return similar
}

func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			matrix[i][j] = minOf3(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}
	return matrix[len(s1)][len(s2)]
}

func minOf3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
