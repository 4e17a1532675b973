// Command fakerepl is a tiny line-oriented interpreter used by the repl tests.
//
// Statements, one per line:
//
//	print("text")   writes text and a newline to stdout
//	a + b           writes "$R<n>: <sum>" to stdout
//	throw text      writes "error: text" to stderr
//	sleep ms        sleeps
//	flood n         writes n bytes of 'x' to stdout without a newline
//	exit code       exits immediately
//
// On startup it writes a banner to stderr unless FAKEREPL_NO_BANNER is set.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	if os.Getenv("FAKEREPL_NO_BANNER") == "" {
		fmt.Fprintln(os.Stderr, "Welcome to fakerepl. Type :help for assistance.")
	}

	results := 0
	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 1<<20), 1<<20)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, `print("`) && strings.HasSuffix(line, `")`):
			fmt.Fprintln(os.Stdout, line[len(`print("`):len(line)-len(`")`)])
		case strings.HasPrefix(line, "throw "):
			fmt.Fprintln(os.Stderr, "error: "+strings.TrimPrefix(line, "throw "))
			// Give the stderr watcher time to drain before the end marker.
			time.Sleep(50 * time.Millisecond)
		case strings.HasPrefix(line, "sleep "):
			ms, _ := strconv.Atoi(strings.TrimPrefix(line, "sleep "))
			time.Sleep(time.Duration(ms) * time.Millisecond)
		case strings.HasPrefix(line, "flood "):
			n, _ := strconv.Atoi(strings.TrimPrefix(line, "flood "))
			os.Stdout.Write([]byte(strings.Repeat("x", n)))
		case strings.HasPrefix(line, "exit "):
			code, _ := strconv.Atoi(strings.TrimPrefix(line, "exit "))
			os.Exit(code)
		default:
			a, b, ok := strings.Cut(line, "+")
			x, errA := strconv.Atoi(strings.TrimSpace(a))
			y, errB := strconv.Atoi(strings.TrimSpace(b))
			if !ok || errA != nil || errB != nil {
				fmt.Fprintf(os.Stderr, "error: cannot parse %q\n", line)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			fmt.Fprintf(os.Stdout, "$R%d: %d\n", results, x+y)
			results++
		}
	}
}
