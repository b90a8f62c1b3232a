// Package main implements the releasegate CLI: verify, build, version and
// publish an editor extension in one gated run.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/releasegate/internal/exitcode"
)

func main() {
	a := &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	os.Exit(execute(a, os.Args[1:]).Int())
}

// execute parses args and runs the command, returning the process exit code.
func execute(a *app, args []string) exitcode.Code {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	a.code = exitcode.Success
	if err := root.Execute(); err != nil {
		// flag and usage errors; cobra has already printed them
		return exitcode.Unknown
	}
	return a.code
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "releasegate",
		Short: "Gated build, version and publish pipeline for an editor extension",
		Long: `releasegate verifies the toolchain and the git state, builds and tests
the extension, reconciles the version between package.json and
CHANGELOG.md, and packages the .vsix.

Unless --analyze-only is given it then asks for confirmation and publishes:
finalize the changelog, commit and push, tag, upload to the marketplace and
create the GitHub release.

The exit code names the step that stopped the run (0 on success).

Examples:
  # Validate and package without publishing
  releasegate --analyze-only

  # Publish from CI without prompts
  releasegate --auto-confirm --no-logo --no-color`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.code = a.run(cmd.Context())
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&a.opts.AnalyzeOnly, "analyze-only", false, "stop after packaging; nothing is committed or published")
	f.BoolVar(&a.opts.SkipTests, "skip-tests", false, "skip the test stage")
	f.BoolVar(&a.opts.SkipExtensions, "skip-extensions", false, "skip the VS Code extension check")
	f.BoolVar(&a.opts.SkipGlobalPackages, "skip-global-npm", false, "skip the global npm package check")
	f.BoolVar(&a.opts.AutoConfirm, "auto-confirm", false, "answer yes to every prompt and install the .vsix after analysis")
	f.BoolVar(&a.opts.AutoConfirm, "auto-install", false, "alias for --auto-confirm")
	f.BoolVar(&a.opts.NoLogo, "no-logo", false, "omit the banner art")
	f.StringVar(&a.opts.ConfigFile, "config", "", "config file (default: .releasegate.yaml or .releasegate.toml in the project)")
	f.StringVarP(&a.opts.ProjectDir, "project", "C", "", "extension project directory (default: current directory)")
	f.BoolVarP(&a.opts.Verbose, "verbose", "v", false, "debug logging on stderr")
	f.BoolVar(&a.opts.NoColor, "no-color", false, "plain output without colours")

	cmd.AddCommand(newVersionCmd())
	return cmd
}
