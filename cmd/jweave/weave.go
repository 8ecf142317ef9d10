package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/daimatz/jweave/pkg/classfile"
	"github.com/daimatz/jweave/pkg/classpath"
	"github.com/daimatz/jweave/pkg/config"
	"github.com/daimatz/jweave/pkg/interceptor"
	"github.com/daimatz/jweave/pkg/vm"
	"github.com/daimatz/jweave/pkg/weave"
)

// weaver runs one plan: every target class is woven in its own goroutine
// and every woven member reports to a logging interceptor.
type weaver struct {
	plan   *config.Plan
	path   *classpath.Path
	reg    *interceptor.Registry
	inst   *weave.Instrumentor
	logger logr.Logger
}

func newWeaver(plan *config.Plan, logger logr.Logger) *weaver {
	path := plan.Path()
	reg := interceptor.NewRegistry(interceptor.WithLogger(logger.WithName("registry")))
	return &weaver{
		plan:   plan,
		path:   path,
		reg:    reg,
		inst:   weave.NewInstrumentor(weave.NewClassPool(path), reg, weave.WithLogger(logger.WithName("weave"))),
		logger: logger,
	}
}

// weave applies the plan and returns the woven bytes by internal name. A
// request that cannot be applied is logged and reported through failed;
// classes it left untouched are not returned, every other class is. err is
// set only when the run itself stops, for example on cancellation.
func (w *weaver) weave(ctx context.Context) (woven map[string][]byte, failed, err error) {
	var mu sync.Mutex
	out := make(map[string][]byte)
	var failures []error

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.plan.Workers)
	for _, class := range w.plan.Classes() {
		class := class
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, errs := w.weaveClass(class)
			mu.Lock()
			defer mu.Unlock()
			failures = append(failures, errs...)
			if data != nil {
				out[classfile.InternalName(class)] = data
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return out, errors.Join(failures...), nil
}

func (w *weaver) weaveClass(class string) ([]byte, []error) {
	trace := func(className string) any {
		return interceptor.NewLoggingInterceptor(className, w.logger)
	}
	var errs []error
	for _, t := range w.plan.TargetsFor(class) {
		var err error
		if t.All {
			err = w.inst.WeaveAllDeclaredMethods(t.Class, trace)
		} else {
			err = w.inst.Apply(t.Request(), trace(t.Class))
		}
		if err != nil {
			w.logger.Error(err, "weave request not applied", "class", class, "method", t.Method, "all", t.All)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		if m, err := w.inst.Model(class); err != nil || !m.Woven() {
			return nil, errs
		}
	}
	data, err := w.inst.ToBinary(class)
	if err != nil {
		w.logger.Error(err, "class not materialized", "class", class)
		return nil, append(errs, err)
	}
	w.logger.V(1).Info("woven class", "class", class, "bytes", len(data))
	return data, errs
}

// writeClasses stores each class as <dir>/<internal name>.class.
func writeClasses(dir string, classes map[string][]byte) error {
	for name, data := range classes {
		path := filepath.Join(dir, filepath.FromSlash(name)+".class")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

// execute defines the woven classes in a fresh VM, superclasses first, and
// runs the main method of className. Other classes load from the class path.
func (w *weaver) execute(className string, woven map[string][]byte, stdout io.Writer) error {
	v := vm.NewVM(w.path, vm.WithHooks(w.reg), vm.WithStdout(stdout), vm.WithLogger(w.logger.WithName("vm")))

	names := make([]string, 0, len(woven))
	for name := range woven {
		names = append(names, name)
	}
	sort.Strings(names)

	defined := make(map[string]bool, len(woven))
	var define func(name string) error
	define = func(name string) error {
		if defined[name] {
			return nil
		}
		defined[name] = true
		cf, err := classfile.ParseBytes(woven[name])
		if err != nil {
			return fmt.Errorf("parsing woven %s: %w", classfile.DottedName(name), err)
		}
		if super := cf.SuperClassName(); woven[super] != nil {
			if err := define(super); err != nil {
				return err
			}
		}
		_, err = v.DefineClass(classfile.DottedName(name), woven[name])
		return err
	}
	for _, name := range names {
		if err := define(name); err != nil {
			return err
		}
	}
	return v.Execute(className)
}
