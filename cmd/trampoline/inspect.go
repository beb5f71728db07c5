package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newInspectCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <module.wasm>",
		Short: "List the imports and exports of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mod, err := opts.loadModule(ctx, args[0])
			if err != nil {
				return err
			}
			defer mod.Close(ctx)

			writeInspect(cmd.OutOrStdout(), mod)
			return nil
		},
	}
}

func writeInspect(w io.Writer, mod *module) {
	st := stylesFor(w)

	fmt.Fprintf(w, "%s %s\n", st.title("module"), mod.name)

	imports := mod.comp.Imports()
	fmt.Fprintf(w, "\nimports (%d):\n", len(imports))
	for i, imp := range imports {
		fmt.Fprintf(w, "  [%d] %s %s\n", i, st.fn(imp.Path()), st.typ(imp.Signature.String()))
	}

	exports := mod.comp.Exports()
	fmt.Fprintf(w, "\nexports (%d):\n", len(exports))
	for _, e := range exports {
		fmt.Fprintf(w, "  %s %s\n", st.fn(e.Name), st.typ(e.Signature.String()))
	}
}
