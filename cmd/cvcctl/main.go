// Command cvcctl is a debug and inspection CLI exercising the Engine
// operation contract of spec §6.1. It mirrors kai-cli/cmd/kai's command
// declaration style (package-level `var xCmd = &cobra.Command{Use:,
// RunE: runX}`, plain fmt.Println status output) but is deliberately
// thin: it is not one of the three front-ends the spec excludes from the
// core (no REPL rendering, no LLM proxying, no tool-calling routing) —
// just enough surface to commit, branch, restore, merge, and inspect a
// repository from a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cvc-dev/cvc/internal/config"
	"github.com/cvc-dev/cvc/internal/engine"
	"github.com/cvc-dev/cvc/internal/model"
)

var (
	flagWorkspace string
	flagAgentID   string
	flagMode      string
)

var rootCmd = &cobra.Command{
	Use:   "cvcctl",
	Short: "Inspect and drive a Cognitive Version Control repository",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "repository root (defaults to CVC_WORKSPACE or ancestor discovery)")
	rootCmd.PersistentFlags().StringVar(&flagAgentID, "agent-id", "unknown", "agent identifier stamped into commit metadata")
	rootCmd.PersistentFlags().StringVar(&flagMode, "mode", "cli", "mode label stamped into commit metadata: cli|proxy|mcp|unknown")

	rootCmd.AddCommand(
		initCmd,
		statusCmd,
		pushCmd,
		commitCmd,
		branchCmd,
		branchesCmd,
		switchCmd,
		restoreCmd,
		mergeCmd,
		logCmd,
		blobCmd,
		linkCmd,
		recallCmd,
		exportCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cvcctl:", err)
		os.Exit(1)
	}
}

func openEngine() (*engine.Engine, error) {
	mode := config.Mode(flagMode)
	root := config.DiscoverWorkspace(flagWorkspace, ".", nil)
	cfg, err := config.Load(root, mode, config.Config{AgentID: flagAgentID})
	if err != nil {
		return nil, err
	}
	return engine.Open(cfg)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize (or open) a repository, creating the genesis commit if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		st, err := e.Status()
		if err != nil {
			return err
		}
		fmt.Printf("repository ready on branch %q at head %s\n", st.ActiveBranch, shortOf(st.HeadHash))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active branch, head, and window size",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		st, err := e.Status()
		if err != nil {
			return err
		}
		fmt.Printf("branch      %s\n", st.ActiveBranch)
		fmt.Printf("head        %s\n", shortOf(st.HeadHash))
		fmt.Printf("window      %d messages\n", st.WindowSize)
		fmt.Printf("tokens      ~%d\n", st.TokenCount)
		return nil
	},
}

var pushCmd = &cobra.Command{
	Use:   "push <role> <content>",
	Short: "Append a message to the context window",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.PushMessage(model.Message{Role: model.Role(args[0]), Content: args[1]}); err != nil {
			return err
		}
		fmt.Println("pushed")
		return nil
	},
}

var commitTags []string
var commitType string

var commitCmd = &cobra.Command{
	Use:   "commit <message>",
	Short: "Snapshot the current window into a new commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		ct := model.CommitType(commitType)
		if ct == "" {
			ct = model.CommitCheckpoint
		}
		c, err := e.Commit(args[0], ct, commitTags)
		if err != nil {
			return err
		}
		fmt.Printf("committed %s\n", c.ShortHash())
		return nil
	},
}

var branchCmd = &cobra.Command{
	Use:   "branch <name>",
	Short: "Create a branch at the active branch's head and switch to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		bp, err := e.Branch(args[0], "")
		if err != nil {
			return err
		}
		fmt.Printf("created branch %q at %s\n", bp.Name, shortOf(bp.HeadHash))
		return nil
	},
}

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List every branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		branches, err := e.ListBranches()
		if err != nil {
			return err
		}
		for _, b := range branches {
			fmt.Printf("%-20s %-10s %s\n", b.Name, b.Status, shortOf(b.HeadHash))
		}
		return nil
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Switch the active branch, rehydrating the window from its head",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.Switch(args[0]); err != nil {
			return err
		}
		fmt.Printf("switched to %q\n", args[0])
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <commit-hash-or-prefix>",
	Short: "Time-travel to a commit, recording a rollback commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		target, err := e.Restore(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("restored to %s\n", target.ShortHash())
		return nil
	},
}

var mergeTarget string

var mergeCmd = &cobra.Command{
	Use:   "merge <source>",
	Short: "Three-way merge source into the target branch (default: active)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		c, err := e.Merge(args[0], mergeTarget, nil)
		if err != nil {
			return err
		}
		fmt.Printf("merge commit %s\n", c.ShortHash())
		return nil
	},
}

var logLimit int
var logBranch string

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Walk a branch's first-parent history",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		commits, err := e.Log(logBranch, logLimit)
		if err != nil {
			return err
		}
		for _, c := range commits {
			fmt.Printf("%s  %-10s  %s\n", c.ShortHash(), c.Metadata.CommitType, c.Metadata.Message)
		}
		return nil
	},
}

var blobCmd = &cobra.Command{
	Use:   "blob <commit-hash-or-prefix>",
	Short: "Print a commit's reconstructed message count and reasoning trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		blob, err := e.GetBlob(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("messages: %d\n", len(blob.Messages))
		if blob.ReasoningTrace != "" {
			fmt.Printf("reasoning_trace: %s\n", blob.ReasoningTrace)
		}
		return nil
	},
}

var linkCmd = &cobra.Command{
	Use:   "link <git-sha> <commit-hash>",
	Short: "Associate a Git commit SHA with a CVC commit hash",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.SetGitLink(args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("linked")
		return nil
	},
}

var recallLimit int
var recallDeep bool

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Search commit messages (and, with --deep, message content) for query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		hits := e.Recall(args[0], recallLimit, recallDeep)
		for _, h := range hits {
			fmt.Printf("%s  [%s]  %s\n", shortOf(h.CommitHash), h.Source, h.Snippet)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <commit-hash-or-prefix>",
	Short: "Render a commit's conversation as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		markdown, hash, err := e.Export(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "# resolved %s\n", shortOf(hash))
		fmt.Print(markdown)
		return nil
	},
}

func init() {
	commitCmd.Flags().StringSliceVar(&commitTags, "tag", nil, "repeatable tag to attach to the commit")
	commitCmd.Flags().StringVar(&commitType, "type", string(model.CommitCheckpoint), "commit type: checkpoint|analysis|generation")
	mergeCmd.Flags().StringVar(&mergeTarget, "target", "", "target branch (defaults to the active branch)")
	logCmd.Flags().StringVar(&logBranch, "branch", "", "branch to walk (defaults to the active branch)")
	logCmd.Flags().IntVar(&logLimit, "limit", 0, "maximum number of commits to print (0 = unbounded)")
	recallCmd.Flags().IntVar(&recallLimit, "limit", 10, "maximum number of hits")
	recallCmd.Flags().BoolVar(&recallDeep, "deep", false, "scan reconstructed message content, not just commit messages")
}

func shortOf(hash string) string {
	if hash == "" {
		return "(none)"
	}
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
