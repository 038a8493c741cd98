// wordlogd - rebuild typed words from key events into a JSON-Lines log
//
//	wordlogd run            Capture key events and append committed lines
//	wordlogd check <log>    Validate a word log against the record schema
//	wordlogd show <log>     Print the lines in a word log
//	wordlogd search <text>  Query the line index
//	wordlogd config         Print the effective configuration
//	wordlogd keys           List recognised key names
//	wordlogd crashes        List crash reports
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// Version is set at build time.
var Version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// errUsage marks an error already explained by printed usage.
var errUsage = errors.New("usage")

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 1
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "run":
		err = cmdRun(rest, stdin, stderr)
	case "check":
		err = cmdCheck(rest, stdout)
	case "show":
		err = cmdShow(rest, stdout)
	case "search":
		err = cmdSearch(rest, stdout)
	case "config":
		err = cmdConfig(rest, stdout)
	case "keys":
		err = cmdKeys(stdout)
	case "crashes":
		err = cmdCrashes(stdout)
	case "version":
		fmt.Fprintf(stdout, "wordlogd %s\n", Version)
	case "help", "-h", "--help":
		usage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		usage(stderr)
		return 1
	}

	if err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `wordlogd - Word Logger

USAGE:
    wordlogd <command> [options]

COMMANDS:
    run [-config f] [-script f|-] [-out f]
                        Apply key events and append committed lines
    check <log>         Validate every line of a word log
    show [-json] <log>  Print committed lines
    search [-index f] [-limit n] <text>
                        Find indexed lines containing text
    config [-config f] [-format f] [-init]
                        Print the effective configuration; -init writes
                        the defaults when the file is missing
    keys                List recognised key names
    crashes             List crash reports
    version             Print the version
    help                Show this help message

SCRIPT DIRECTIVES (one per line, read by run):
    down <key>          Press a key
    up <key>            Release a key
    tap <key>           Press and release a key
    type <text>         Type text, toggling shift where needed
    line <text>         Type text, then press Enter
    sleep <duration>    Pause, e.g. 50ms
    # comment

Shift toggles on every shift release; Enter commits the current word.`)
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}
