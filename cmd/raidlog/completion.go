package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/raidframer/raidlog-go/pkg/raidlog"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate a completion script for raidlog and print it to stdout.

Load it into the current shell:

  bash:        source <(raidlog completion bash)
  zsh:         source <(raidlog completion zsh)
  fish:        raidlog completion fish | source
  powershell:  raidlog completion powershell | Out-String | Invoke-Expression

To keep completions across sessions, write the script to your shell's
completion directory instead (for zsh, a file named _raidlog on $fpath).

Completion covers event kinds for --include-kinds/--exclude-kinds, actor kind
prefixes for watch --include/--exclude, and output formats.`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Usage()
		}

		root, out := cmd.Root(), cmd.OutOrStdout()
		switch args[0] {
		case "zsh":
			return root.GenZshCompletion(out)
		case "fish":
			return root.GenFishCompletion(out, true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(out)
		default:
			return root.GenBashCompletionV2(out, true)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// completionFunc is the signature cobra expects for flag completion.
type completionFunc func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective)

// splitCSV splits a partially typed comma-separated flag value into the
// finished values (kept verbatim as prefix) and the word being typed.
func splitCSV(toComplete string) (prefix string, done []string, current string) {
	parts := strings.Split(toComplete, ",")
	done = parts[:len(parts)-1]
	if len(done) > 0 {
		prefix = strings.Join(done, ",") + ","
	}
	return prefix, done, strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
}

// completeKinds completes event kind names for a comma-separated kind flag.
// Kinds already typed or already set on the flag are not offered again.
func completeKinds(flagName string) completionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		prefix, done, current := splitCSV(toComplete)

		used := make(map[raidlog.Kind]bool)
		set, _ := cmd.Flags().GetStringSlice(flagName)
		for _, v := range append(done, set...) {
			if k, ok := raidlog.ParseKind(v); ok {
				used[k] = true
			}
		}

		var candidates []string
		for _, name := range ValidKindNames() {
			k, _ := raidlog.ParseKind(name)
			if !used[k] && strings.HasPrefix(name, current) {
				candidates = append(candidates, prefix+name)
			}
		}
		return candidates, cobra.ShellCompDirectiveNoSpace | cobra.ShellCompDirectiveNoFileComp
	}
}

// completeActorRules offers the actor kind prefixes accepted by --include and
// --exclude. Once a prefix is typed the rest is a free-form name glob.
func completeActorRules(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	prefix, _, current := splitCSV(toComplete)
	if strings.Contains(current, ":") {
		return nil, cobra.ShellCompDirectiveNoSpace | cobra.ShellCompDirectiveNoFileComp
	}

	var candidates []string
	for _, k := range actorKinds {
		if name := string(k) + ":"; strings.HasPrefix(name, current) {
			candidates = append(candidates, prefix+name)
		}
	}
	return candidates, cobra.ShellCompDirectiveNoSpace | cobra.ShellCompDirectiveNoFileComp
}

// completeFormats completes a fixed set of output formats.
func completeFormats(formats map[string]bool) completionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var out []string
		for f := range formats {
			if strings.HasPrefix(f, toComplete) {
				out = append(out, f)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}
