// Package cli wires configuration, the tree-sitter frontend and a session
// into the autocomplete command.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"autocomplete/internal/core/session"
	"autocomplete/internal/engine/parser"
	"autocomplete/internal/ui/lsp"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
)

type cliOptions struct {
	configPath string
	args       []string
	verbose    bool
	json       bool
}

// Run executes the command line and returns the process exit code.
func Run(args []string) int {
	root := newRootCommand(&cliOptions{}, os.Stdin, os.Stdout, os.Stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCommand(opts *cliOptions, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "autocomplete",
		Short:         "Code completion for C, C++ and Go",
		Long:          "autocomplete parses source files with tree-sitter and answers completion queries from a cache of translation units.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config file (default: autocomplete.toml in the project root)")
	flags.StringArrayVar(&opts.args, "arg", nil, "compiler argument appended to the configured arguments (repeatable)")
	flags.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")
	flags.BoolVar(&opts.json, "json", false, "print results as JSON")

	root.AddCommand(
		newCompleteCommand(opts),
		newDiagnoseCommand(opts),
		newLSPCommand(opts),
		newVersionCommand(opts),
	)
	return root
}

func newCompleteCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete FILE LINE COL",
		Short: "List completion candidates at a 1-based line and byte column",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := positiveInt("LINE", args[1])
			if err != nil {
				return err
			}
			col, err := positiveInt("COL", args[2])
			if err != nil {
				return err
			}

			rt, err := newRuntime(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			path := absPath(args[0])
			candidates := rt.session.Complete(cmd.Context(), path, line, col)
			diags := rt.session.Diagnostics(path)
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), completionOutput{
					File:        path,
					Line:        line,
					Column:      col,
					Candidates:  candidates,
					Diagnostics: jsonDiagnostics(diags),
				})
			}
			renderCandidates(cmd.OutOrStdout(), candidates)
			renderDiagnostics(cmd.ErrOrStderr(), diags)
			return nil
		},
	}
}

func newDiagnoseCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose FILE",
		Short: "Parse a file and print its diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			path := absPath(args[0])
			diags := rt.session.Diagnose(cmd.Context(), path)
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), diagnoseOutput{File: path, Diagnostics: jsonDiagnostics(diags)})
			}
			if len(diags) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("no diagnostics"))
				return nil
			}
			renderDiagnostics(cmd.OutOrStdout(), diags)
			return nil
		},
	}
}

func newLSPCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Run the language server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, err := newRuntime(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			if err := rt.startServices(ctx); err != nil {
				return err
			}

			// glsp logs through commonlog; keep it on stderr and quiet unless asked.
			verbosity := 0
			if opts.verbose {
				verbosity = 2
			}
			commonlog.Configure(verbosity, nil)

			server := lsp.NewServer(rt.session, rt.logger)
			defer server.Close()

			errCh := make(chan error, 1)
			go func() { errCh <- server.RunStdio() }()
			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				return nil
			}
		},
	}
}

func newVersionCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the engine and frontend versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), versionOutput{Engine: session.Version, Frontend: parser.Version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "autocomplete %s (%s)\n", session.Version, parser.Version)
			return nil
		},
	}
}

func positiveInt(name, raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	if v < 1 {
		return 0, fmt.Errorf("%s must be >= 1, got %d", name, v)
	}
	return v, nil
}
