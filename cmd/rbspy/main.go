// Program rbspy is the CLI entry point: record, snapshot, and inspect
// subcommands over internal/rbspy's facade. This file wires flag
// parsing, the facade, and the serializer packages together, same
// shape as the standalone CLI programs elsewhere in this repo
// (cmd/addr2func).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rbspy/rbspy-sub000/internal/rbspy"
	"github.com/rbspy/rbspy-sub000/internal/serialize/collapsed"
	"github.com/rbspy/rbspy-sub000/internal/serialize/pprof"
	"github.com/rbspy/rbspy-sub000/internal/serialize/summary"
	"github.com/rbspy/rbspy-sub000/internal/stacktrace"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("rbspy: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "record":
		err = runRecord(os.Args[2:])
	case "snapshot":
		err = runSnapshot(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rbspy <record|snapshot|inspect> [flags]")
}

func runRecord(args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	pid := fs.Int("pid", 0, "PID of the Ruby process to record")
	rate := fs.Int("rate", 100, "samples per second")
	duration := fs.Duration("duration", 0, "how long to record (0 = until the process exits)")
	lockProcess := fs.Bool("lock-process", true, "ptrace-suspend the target for each sample")
	subprocesses := fs.Bool("subprocesses", false, "also record any descendant Ruby processes")
	forceVersion := fs.String("force-version", "", "skip version detection, use this Ruby version instead")
	format := fs.String("format", "summary", "output format: pprof, collapsed, summary")
	outPath := fs.String("file", "", "output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pid == 0 {
		return fmt.Errorf("record: -pid is required")
	}

	cfg := rbspy.Config{
		PID:              *pid,
		SampleRate:       *rate,
		LockProcess:      lockProcess,
		WithSubprocesses: *subprocesses,
		Duration:         *duration,
		ForceVersion:     *forceVersion,
	}

	traces, err := rbspy.Record(cfg)
	if err != nil && len(traces) == 0 {
		return err
	}
	if err != nil {
		log.Printf("recording ended with an error after %d samples: %v", len(traces), err)
	}

	w, closeFn, err := output(*outPath)
	if err != nil {
		return err
	}
	defer closeFn()

	period := time.Second / time.Duration(*rate)
	return writeFormat(w, *format, traces, period)
}

func runSnapshot(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	pid := fs.Int("pid", 0, "PID of the Ruby process to snapshot")
	forceVersion := fs.String("force-version", "", "skip version detection, use this Ruby version instead")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pid == 0 {
		return fmt.Errorf("snapshot: -pid is required")
	}

	trace, err := rbspy.Snapshot(rbspy.Config{PID: *pid, ForceVersion: *forceVersion})
	if err != nil {
		return err
	}
	return summary.Write(os.Stdout, []stacktrace.StackTrace{trace}, 0)
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	pid := fs.Int("pid", 0, "PID of the Ruby process to inspect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pid == 0 {
		return fmt.Errorf("inspect: -pid is required")
	}

	info, err := rbspy.Inspect(rbspy.Config{PID: *pid})
	if err != nil {
		return err
	}
	fmt.Printf("pid:             %d\n", info.PID)
	fmt.Printf("ruby version:    %s\n", info.RubyVersion)
	fmt.Printf("binary:          %s\n", info.BinaryPath)
	fmt.Printf("thread location: %#x\n", info.ThreadLocation)
	return nil
}

func writeFormat(w *os.File, format string, traces []stacktrace.StackTrace, period time.Duration) error {
	switch format {
	case "pprof":
		return pprof.Write(w, traces, period)
	case "collapsed":
		return collapsed.Write(w, traces)
	case "summary":
		return summary.Write(w, traces, 20)
	default:
		return fmt.Errorf("unknown -format %q (want pprof, collapsed, or summary)", format)
	}
}

func output(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
