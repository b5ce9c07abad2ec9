package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/octaspire/dern-sub003/pkg/interpreter"
	"github.com/octaspire/dern-sub003/pkg/parser"
	"github.com/octaspire/dern-sub003/pkg/runtime"
)

const (
	promptMain  = "> "
	promptCont  = "... "
	historyFile = ".dern_history"
	replBanner  = "Dern REPL. Type (exit) or press Ctrl-D to leave."
)

// runRepl starts an interactive session when stdin is a terminal. Piped
// input is read whole and evaluated as a script.
func runRepl(opts globalOptions, args []string) int {
	if len(args) > 0 {
		fmt.Fprintf(os.Stderr, "dern repl does not take arguments (received %s)\n", strings.Join(args, " "))
		return 1
	}
	sess, err := newSession(opts, ".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	interp := sess.interpreter(".")
	defer interp.Close()

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		src, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read stdin: %v\n", err)
			return 1
		}
		return execute(interp, func() *runtime.Value {
			return interp.ReadAndEvalBuffer(src)
		}, false)
	}
	return interactive(interp)
}

func interactive(interp *interpreter.Interpreter) int {
	fmt.Fprintln(os.Stdout, replBanner)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for !interp.IsQuitting() {
		src, ok := readForm(ln, interp)
		if !ok {
			fmt.Fprintln(os.Stdout)
			break
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		code := execute(interp, func() *runtime.Value {
			return interp.ReadAndEvalString(src)
		}, true)
		if code == exitAborted || code == exitFatal {
			return code
		}
	}
	return interp.ExitCode()
}

// readForm collects lines until the reader stops reporting incomplete
// input. ok is false at end of input or when the prompt is aborted.
func readForm(ln *liner.State, interp *interpreter.Interpreter) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if err != nil {
			// io.EOF on Ctrl-D, liner.ErrPromptAborted on Ctrl-C.
			return "", false
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if _, err := interp.Parse(src); errors.Is(err, parser.ErrIncomplete) {
			continue
		}
		return src, true
	}
}
