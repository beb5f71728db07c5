package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.bytecodealliance.org/wit"
	"go.uber.org/multierr"
	"golang.org/x/term"

	"github.com/wippyai/wasm-trampoline/engine"
	"github.com/wippyai/wasm-trampoline/errors"
	"github.com/wippyai/wasm-trampoline/hosts"
	"github.com/wippyai/wasm-trampoline/linker"
	"github.com/wippyai/wasm-trampoline/metrics"
)

type runOptions struct {
	async       bool
	repeat      int
	interactive bool
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <module.wasm> [export] [args...]",
		Short: "Instantiate a module against the built-in hosts and call an export",
		Long: `Instantiate a module against the built-in hosts and call an export.

With --async the calls run as sessions on one instance; their timer
sleeps overlap and the sessions resume in completion order. With
--interactive exports are picked from a list.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ro.interactive && len(args) < 2 {
				return errors.InvalidInput(errors.PhaseParse, args, "an export name is required")
			}
			if ro.repeat < 1 {
				return errors.InvalidInput(errors.PhaseParse, ro.repeat, "repeat must be at least 1")
			}
			return runModule(cmd, opts, ro, args)
		},
	}

	cmd.Flags().BoolVar(&ro.async, "async", false, "run calls as concurrent sessions")
	cmd.Flags().IntVarP(&ro.repeat, "repeat", "n", 1, "number of calls")
	cmd.Flags().BoolVarP(&ro.interactive, "interactive", "i", false, "pick exports interactively")
	return cmd
}

func runModule(cmd *cobra.Command, opts *rootOptions, ro *runOptions, args []string) (err error) {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	mod, err := opts.loadModule(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, mod.Close(ctx)) }()

	l, reg, err := opts.newLinker()
	if err != nil {
		return err
	}
	inst, err := l.Instantiate(ctx, mod.comp, hosts.NewState())
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, inst.Close(ctx)) }()

	if ro.interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.InvalidInput(errors.PhaseParse, "stdin", "interactive mode requires a terminal")
		}
		return runInteractive(mod.name, inst)
	}

	export, ok := findExport(inst.Exports(), args[1])
	if !ok {
		return errors.NotFound(errors.PhaseEngine, "export", args[1])
	}
	callArgs, err := convertArgs(export.Signature, args[2:])
	if err != nil {
		return err
	}

	st := stylesFor(out)
	label := export.Name + "(" + strings.Join(args[2:], ", ") + ")"
	if ro.async {
		err = runSessions(ctx, out, opts, inst, export.Name, label, callArgs, ro.repeat)
	} else {
		for i := 0; i < ro.repeat; i++ {
			res, callErr := inst.Invoke(ctx, export.Name, callArgs...)
			if callErr != nil {
				fmt.Fprintf(out, "%s: %s\n", label, st.err(callErr.Error()))
				err = multierr.Append(err, callErr)
				continue
			}
			fmt.Fprintf(out, "%s = %s\n", label, st.result(formatResults(res)))
		}
	}

	if stErr := writeState(ctx, out, inst); stErr != nil {
		err = multierr.Append(err, stErr)
	}
	if reg != nil {
		err = multierr.Append(err, metrics.WriteText(cmd.ErrOrStderr(), reg))
	}
	return err
}

func runSessions(ctx context.Context, out io.Writer, opts *rootOptions, inst *linker.Instance[hosts.State], export, label string, args []any, n int) error {
	sessions := make([]*linker.CallSession, 0, n)
	for i := 0; i < n; i++ {
		cs, err := inst.StartCall(ctx, export, args...)
		if err != nil {
			for _, s := range sessions {
				_ = s.Cancel(ctx)
			}
			return err
		}
		sessions = append(sessions, cs)
	}

	outcomes, err := opts.cfg.NewDriver().Run(ctx, sessions...)
	st := stylesFor(out)
	for i, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(out, "[%d] %s: %s\n", i, label, st.err(o.Err.Error()))
			continue
		}
		fmt.Fprintf(out, "[%d] %s = %s\n", i, label, st.result(formatResults(o.Results)))
	}
	return err
}

func writeState(ctx context.Context, out io.Writer, inst *linker.Instance[hosts.State]) error {
	return inst.WithContext(ctx, func(_ context.Context, s *hosts.State) error {
		fmt.Fprintf(out, "state: count=%d slept=%dms\n", s.Count, s.Slept)
		for _, e := range s.Log {
			fmt.Fprintf(out, "  %s\n", e)
		}
		return nil
	})
}

func findExport(exports []engine.Export, name string) (engine.Export, bool) {
	for _, e := range exports {
		if e.Name == name {
			return e, true
		}
	}
	return engine.Export{}, false
}

func convertArgs(sig engine.Signature, values []string) ([]any, error) {
	if len(values) != len(sig.Params) {
		return nil, errors.InvalidInput(errors.PhaseParse, values,
			fmt.Sprintf("expected %d arguments %s, got %d", len(sig.Params), sig.String(), len(values)))
	}
	args := make([]any, len(values))
	for i, v := range values {
		a, err := convertArg(v, sig.Params[i])
		if err != nil {
			return nil, err
		}
		args[i] = a
	}
	return args, nil
}

func convertArg(value string, t wit.Type) (any, error) {
	var (
		v   any
		err error
	)
	switch t.(type) {
	case wit.String:
		return value, nil
	case wit.U8, wit.U16, wit.U32:
		var n uint64
		n, err = strconv.ParseUint(value, 10, 32)
		v = uint32(n)
	case wit.S8, wit.S16, wit.S32:
		var n int64
		n, err = strconv.ParseInt(value, 10, 32)
		v = int32(n)
	case wit.U64:
		v, err = strconv.ParseUint(value, 10, 64)
	case wit.S64:
		v, err = strconv.ParseInt(value, 10, 64)
	case wit.F32:
		var f float64
		f, err = strconv.ParseFloat(value, 32)
		v = float32(f)
	case wit.F64:
		v, err = strconv.ParseFloat(value, 64)
	case wit.Bool:
		v, err = strconv.ParseBool(value)
	default:
		return value, nil
	}
	if err != nil {
		return nil, errors.TypeMismatch(errors.PhaseParse, value, engine.TypeName(t))
	}
	return v, nil
}

func formatResults(res []any) string {
	switch len(res) {
	case 0:
		return "()"
	case 1:
		return fmt.Sprint(res[0])
	}
	parts := make([]string, len(res))
	for i, r := range res {
		parts[i] = fmt.Sprint(r)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
