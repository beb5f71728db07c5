package main

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-trampoline/errors"
	"github.com/wippyai/wasm-trampoline/hosts"
	"github.com/wippyai/wasm-trampoline/linker"
)

func newPlanCommand(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "plan <module.wasm>",
		Short: "Resolve every import without instantiating the module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "yaml" {
				return errors.InvalidInput(errors.PhaseParse, format, "format must be text or yaml")
			}

			ctx := cmd.Context()
			mod, err := opts.loadModule(ctx, args[0])
			if err != nil {
				return err
			}
			defer mod.Close(ctx)

			l, _, err := opts.newLinker()
			if err != nil {
				return err
			}
			plan := l.Plan(mod.comp)

			out := cmd.OutOrStdout()
			if format == "yaml" {
				if err := writePlanYAML(out, mod.name, plan); err != nil {
					return err
				}
			} else {
				writePlanText(out, mod.name, plan)
			}
			return plan.Err()
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text|yaml)")
	return cmd
}

func writePlanText(w io.Writer, name string, plan *linker.Plan[hosts.State]) {
	st := stylesFor(w)
	bound := 0

	fmt.Fprintf(w, "module %s\n", name)
	for i, e := range plan.Entries {
		fmt.Fprintf(w, "[%d] %s %s\n", i, st.fn(e.Import.Path()), st.typ(e.Import.Signature.String()))
		switch {
		case e.Err != nil:
			fmt.Fprintf(w, "    !! %s\n", st.err(planError(e.Err)))
		case e.Binding.Skipped():
			fmt.Fprintln(w, "    => (skipped)")
		default:
			bound++
			fmt.Fprintf(w, "    => %s\n", st.result(e.Binding.Key().String()))
		}
	}
	fmt.Fprintf(w, "%d of %d imports bound\n", bound, len(plan.Entries))
}

// planError drops the instantiation wrapper; the entry already names the
// import.
func planError(err error) string {
	var unresolved *linker.UnresolvedError
	if stderrors.As(err, &unresolved) {
		return unresolved.Error()
	}
	var inst *linker.InstantiationError
	if stderrors.As(err, &inst) && inst.Cause != nil {
		return inst.Cause.Error()
	}
	return err.Error()
}

type planDoc struct {
	Module  string         `yaml:"module"`
	Imports []planDocEntry `yaml:"imports"`
	Bound   int            `yaml:"bound"`
}

type planDocEntry struct {
	Slot      int      `yaml:"slot"`
	Import    string   `yaml:"import"`
	Signature string   `yaml:"signature"`
	Target    string   `yaml:"target,omitempty"`
	Skipped   bool     `yaml:"skipped,omitempty"`
	Error     string   `yaml:"error,omitempty"`
	Nearest   []string `yaml:"nearest,omitempty"`
}

func writePlanYAML(w io.Writer, name string, plan *linker.Plan[hosts.State]) error {
	doc := planDoc{Module: name, Imports: make([]planDocEntry, len(plan.Entries))}
	for i, e := range plan.Entries {
		de := planDocEntry{
			Slot:      i,
			Import:    e.Import.Path(),
			Signature: e.Import.Signature.String(),
		}
		switch {
		case e.Err != nil:
			de.Error = planError(e.Err)
			var unresolved *linker.UnresolvedError
			if stderrors.As(e.Err, &unresolved) {
				for _, v := range unresolved.Nearest {
					de.Nearest = append(de.Nearest, v.String())
				}
			}
		case e.Binding.Skipped():
			de.Skipped = true
		default:
			de.Target = e.Binding.Key().String()
			doc.Bound++
		}
		doc.Imports[i] = de
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
