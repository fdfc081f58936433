// Package repl is the interactive read-eval-print loop: it reads one
// line at a time, scans it straight into a value array the way
// internal/scan's loader treats any other source, binds and evaluates
// it against one long-lived Interp, and molds the result back out —
// no separate lexer/parser/compiler/vm stage, since this core evaluates
// a bound value tree directly.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"rebolcore/internal/eval"
	"rebolcore/internal/mold"
	"rebolcore/internal/port"
	"rebolcore/internal/scan"
)

// Start runs the loop against in/out, reusing one Interp (and so one
// root context) across every line the way a real console session
// keeps its globals between inputs. Ports are installed so a session
// can open files, databases, websockets, and packet captures directly
// from the prompt.
func Start(in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "rebolcore | type 'quit' to exit")
	reader := bufio.NewScanner(in)

	ip := eval.New(out)
	port.NewNatives().Install(ip)

	for {
		fmt.Fprint(out, ">> ")
		if !reader.Scan() {
			break
		}
		line := reader.Text()
		if line == "quit" || line == "exit" {
			break
		}
		if line == "" {
			continue
		}

		if err := runLine(ip, line, out); err != nil {
			fmt.Fprintln(out, "** error:", err)
		}
	}
}

func runLine(ip *eval.Interp, line string, out io.Writer) error {
	sc := scan.New(line, ip.Tab)
	src, err := sc.Load()
	if err != nil {
		return err
	}
	result, err := ip.DoTopLevel(context.Background(), src)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "==", mold.Mold(ip.Tab, result))
	return nil
}
