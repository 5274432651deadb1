package commands

import (
	"github.com/spf13/cobra"
)

// NewCompletionCommand creates the completion command for shell completions
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for the sigmos CLI.

To load completions:

Bash:

  $ source <(sigmos completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ sigmos completion bash > /etc/bash_completion.d/sigmos
  # macOS:
  $ sigmos completion bash > $(brew --prefix)/etc/bash_completion.d/sigmos

Zsh:

  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:

  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ sigmos completion zsh > "${fpath[1]}/_sigmos"

  # You will need to start a new shell for this setup to take effect.

Fish:

  $ sigmos completion fish | source

  # To load completions for each session, execute once:
  $ sigmos completion fish > ~/.config/fish/completions/sigmos.fish

PowerShell:

  PS> sigmos completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> sigmos completion powershell > sigmos.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := args[0]
			root := cmd.Root()
			out := cmd.OutOrStdout()

			switch shell {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}
