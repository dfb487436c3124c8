package main

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate completion script for your shell",
	Long: `To load completions:

Bash:
  $ source <(coffre completion bash)

  # To load for each session (Linux):
  $ coffre completion bash > ~/.local/share/bash-completion/completions/coffre

Zsh:
  $ coffre completion zsh > ~/.zsh/completions/_coffre
  # (create ~/.zsh/completions if needed, add to fpath in .zshrc)

Fish:
  $ coffre completion fish > ~/.config/fish/completions/coffre.fish

PowerShell:
  PS> coffre completion powershell >> $PROFILE

Entry names are not completed: that would require unlocking the vault.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Annotations:           map[string]string{skipVaultAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(stdout)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
