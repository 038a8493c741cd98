package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"wordlog/internal/config"
	"wordlog/internal/keys"
	"wordlog/internal/linelog"
	"wordlog/internal/logging"
	"wordlog/internal/sink"
)

func openLog(fs *flag.FlagSet, stdout io.Writer, name string) (*os.File, error) {
	if fs.NArg() != 1 {
		fmt.Fprintf(stdout, "Usage: wordlogd %s <log>\n", name)
		return nil, errUsage
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return f, nil
}

func cmdCheck(args []string, stdout io.Writer) error {
	fs := newFlagSet("check", stdout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := openLog(fs, stdout, "check")
	if err != nil {
		return err
	}
	defer f.Close()

	lines := 0
	if err := linelog.Scan(f, func(n int, _ linelog.Record) error {
		lines = n
		return nil
	}); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d valid lines\n", f.Name(), lines)
	return nil
}

func cmdShow(args []string, stdout io.Writer) error {
	fs := newFlagSet("show", stdout)
	asJSON := fs.Bool("json", false, "print records instead of plain text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := openLog(fs, stdout, "show")
	if err != nil {
		return err
	}
	defer f.Close()

	return linelog.Scan(f, func(_ int, rec linelog.Record) error {
		if *asJSON {
			out, err := linelog.Encode(rec.Line)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(stdout, "%s\n", out)
			return err
		}
		_, err := fmt.Fprintln(stdout, rec.Line)
		return err
	})
}

func cmdSearch(args []string, stdout io.Writer) error {
	fs := newFlagSet("search", stdout)
	indexPath := fs.String("index", "", "index database (default from config)")
	limit := fs.Int("limit", 20, "maximum results, 0 for all")
	configPath := fs.String("config", "", "configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stdout, "Usage: wordlogd search [-index f] [-limit n] <text>")
		return errUsage
	}

	path := *indexPath
	if path == "" {
		cfg, err := config.Load(resolveConfigPath(*configPath))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = cfg.Index.Path
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("index not found: %w", err)
	}

	idx, err := sink.OpenIndex(path)
	if err != nil {
		return err
	}
	defer idx.Close()

	hits, err := idx.Search(fs.Arg(0), *limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, h := range hits {
		fmt.Fprintf(w, "%d\t%s\t%s\n", h.ID, h.CommittedAt.Format(time.RFC3339), h.Text)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d matching lines\n", len(hits))
	return nil
}

func cmdConfig(args []string, stdout io.Writer) error {
	fs := newFlagSet("config", stdout)
	configPath := fs.String("config", "", "configuration file")
	format := fs.String("format", "toml", "output format: toml, json or yaml")
	initFile := fs.Bool("init", false, "write the defaults if the file does not exist")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := resolveConfigPath(*configPath)
	var (
		cfg     *config.Config
		created bool
		err     error
	)
	if *initFile {
		cfg, created, err = config.LoadOrCreate(path)
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := config.Encode(cfg, "."+*format)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(stdout, "# created: %s\n", path)
	}
	fmt.Fprintf(stdout, "# source: %s\n", path)
	_, err = stdout.Write(data)
	if verr := cfg.Validate(); verr != nil {
		fmt.Fprintf(stdout, "# invalid: %v\n", verr)
	}
	return err
}

func cmdKeys(stdout io.Writer) error {
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tCLASS\tPLAIN\tSHIFTED")
	for _, k := range keys.All() {
		class := keys.Classify(k)
		switch class {
		case keys.ClassBackspace, keys.ClassReturn, keys.ClassShift:
			fmt.Fprintf(w, "%s\t%s\t-\t-\n", k, class)
		default:
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k, class,
				quoted(keys.Resolve(k, false)), quoted(keys.Resolve(k, true)))
		}
	}
	return w.Flush()
}

func quoted(l keys.Letter) string {
	b, _ := json.Marshal(l.String())
	return string(b)
}

func cmdCrashes(stdout io.Writer) error {
	reports, err := logging.NewCrashHandler(crashDir(), Version, "").Reports()
	if err != nil {
		return fmt.Errorf("read crash reports: %w", err)
	}
	if len(reports) == 0 {
		fmt.Fprintln(stdout, "No crash reports")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCOMPONENT\tVERSION\tPANIC")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Timestamp.Format(time.RFC3339), r.Component, r.Version, r.PanicValue)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d reports in %s\n", len(reports), crashDir())
	return nil
}
