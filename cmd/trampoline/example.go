package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-trampoline/hosts"
	"github.com/wippyai/wasm-trampoline/wasm"
)

func newExampleCommand(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "example <out.wasm>",
		Short: "Write a demo module that imports the counter and timer hosts",
		Long: `Write a demo module with the exports:

  bump() -> s32        counter.increment
  add(n: s32) -> s32   counter.add (requires counter 1.1)
  nap(ms: s32) -> s32  timer.sleep, then counter.increment`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := exampleModule()
			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(data), args[0])
			return nil
		},
	}
}

func exampleModule() []byte {
	i32 := []wasm.ValType{wasm.ValI32}
	get := wasm.FuncType{Results: i32}
	unary := wasm.FuncType{Params: i32, Results: i32}

	m := &wasm.Module{}
	inc := m.AddImportFunc(importModule(hosts.CounterV1, "^1.0.0"), "increment", get)
	add := m.AddImportFunc(importModule(hosts.CounterV1, "^1.1.0"), "add", unary)
	sleep := m.AddImportFunc(importModule(hosts.Timer, "^1.0.0"), "sleep", unary)

	m.ExportFunc("bump", m.AddFunc(get, nil, wasm.Body(wasm.Call(inc))))
	m.ExportFunc("add", m.AddFunc(unary, nil, wasm.Body(wasm.LocalGet(0), wasm.Call(add))))
	m.ExportFunc("nap", m.AddFunc(unary, nil, wasm.Body(
		wasm.LocalGet(0), wasm.Call(sleep), wasm.Op(wasm.OpDrop),
		wasm.Call(inc),
	)))
	return m.Encode()
}

// importModule turns an interface key such as "demo:timer/timer@1.0.0" into
// the core module name "demo:timer/timer@<requirement>".
func importModule(key, requirement string) string {
	if i := strings.LastIndexByte(key, '@'); i >= 0 {
		key = key[:i]
	}
	return key + "@" + requirement
}
