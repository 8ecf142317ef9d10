// Jweave weaves logging interceptors into compiled classes according to a
// weave plan, writes the woven class files and optionally runs a main class
// against them.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-logr/stdr"

	"github.com/daimatz/jweave/pkg/config"
)

type options struct {
	configPath string
	classPath  string
	output     string
	runClass   string
	verbosity  int
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	fs := flag.NewFlagSet("jweave", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "weave plan (.yaml, .yml or .toml)")
	fs.StringVar(&o.classPath, "cp", "", "class path, replacing the plan's")
	fs.StringVar(&o.output, "o", "", "output directory, replacing the plan's")
	fs.StringVar(&o.runClass, "run", "", "class whose main runs against the woven classes")
	fs.IntVar(&o.verbosity, "v", -1, "log verbosity, replacing the plan's")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.configPath == "" {
		return nil, fmt.Errorf("-config is required")
	}
	return &o, nil
}

// apply lets flags take precedence over the plan.
func (o *options) apply(plan *config.Plan) error {
	if o.classPath != "" {
		plan.ClassPath = filepath.SplitList(o.classPath)
	}
	if o.output != "" {
		plan.Output = o.output
	}
	if o.verbosity >= 0 {
		plan.Verbosity = o.verbosity
	}
	return plan.Validate()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	plan, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if err := o.apply(plan); err != nil {
		return err
	}

	stdr.SetVerbosity(plan.Verbosity)
	logger := stdr.New(log.New(stderr, "", log.LstdFlags)).WithName("jweave")

	w := newWeaver(plan, logger)
	woven, failed, err := w.weave(ctx)
	if err != nil {
		return err
	}
	if err := writeClasses(plan.Output, woven); err != nil {
		return err
	}
	logger.Info("wrote woven classes", "count", len(woven), "dir", plan.Output)
	if failed != nil {
		return fmt.Errorf("weave requests not applied: %w", failed)
	}

	if o.runClass == "" {
		return nil
	}
	return w.execute(o.runClass, woven, stdout)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "jweave: %v\n", err)
		os.Exit(1)
	}
}
