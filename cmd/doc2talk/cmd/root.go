// Package cmd provides the CLI commands for Doc2Talk.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unclecode/doc2talk/internal/chat"
	"github.com/unclecode/doc2talk/internal/config"
	"github.com/unclecode/doc2talk/internal/logging"
	"github.com/unclecode/doc2talk/internal/session"
	"github.com/unclecode/doc2talk/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the doc2talk CLI.
func NewRootCmd() *cobra.Command {
	var (
		codeSource   string
		docsSource   string
		exclude      []string
		cacheID      string
		continueID   string
		listSessions bool
		deleteID     string
	)

	cmd := &cobra.Command{
		Use:   "doc2talk",
		Short: "Chat with your codebase and its documentation",
		Long: `Doc2Talk answers developer questions about a codebase by combining
BM25 retrieval over source files and markdown docs with an LLM
conversation loop.

Point it at a local checkout or a remote repository URL and ask away.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store := session.NewStore(cfg.SessionsDir())

			switch {
			case listSessions:
				return runList(cmd, store)
			case deleteID != "":
				return runDelete(cmd, store, deleteID)
			}

			if codeSource != "" {
				cfg.CodeSource = codeSource
			}
			if docsSource != "" {
				cfg.DocsSource = docsSource
			}
			if len(exclude) > 0 {
				cfg.Exclude = exclude
			}
			if cacheID != "" {
				cfg.CacheID = cacheID
			}

			return runChat(cmd.Context(), cmd, cfg, store, continueID)
		},
	}

	cmd.SetVersionTemplate("doc2talk version {{.Version}}\n")

	cmd.Flags().StringVar(&codeSource, "code", "", "Code source (local path or repository URL)")
	cmd.Flags().StringVar(&docsSource, "docs", "", "Docs source (local path or repository URL)")
	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, "Glob pattern to exclude (repeatable)")
	cmd.Flags().StringVar(&cacheID, "cache-id", "", "Index cache identifier override")
	cmd.Flags().StringVarP(&continueID, "continue", "c", "", "Continue an existing session by id")
	cmd.Flags().BoolVarP(&listSessions, "list", "l", false, "List stored sessions")
	cmd.Flags().StringVarP(&deleteID, "delete", "d", "", "Delete a session by id")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newIndexCmd())

	return cmd
}

func setupLogging(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logCfg := logging.DefaultConfig(cfg.HomeDir)
	logCfg.Level = cfg.LogLevel
	if debugMode {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}
	_, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	return nil
}

func runList(cmd *cobra.Command, store *session.Store) error {
	infos := store.List()
	if len(infos) == 0 {
		cmd.Println("No stored sessions.")
		return nil
	}
	for _, info := range infos {
		cmd.Printf("%s  %s  %d messages\n", info.ID, info.Created, info.MessageCount)
	}
	return nil
}

func runDelete(cmd *cobra.Command, store *session.Store, id string) error {
	if err := store.Delete(id); err != nil {
		return err
	}
	cmd.Printf("Deleted session %s\n", id)
	return nil
}

func runChat(ctx context.Context, cmd *cobra.Command, cfg *config.Config, store *session.Store, continueID string) error {
	var sess *chat.Session
	if continueID != "" {
		stored, err := store.Load(continueID)
		if err != nil {
			return err
		}
		sess = chat.ResumeSession(stored, cfg.MaxHistory, cfg.MaxContexts)
		cmd.Printf("Resumed session %s (%d messages)\n", sess.ID, len(sess.Messages))
	} else {
		sess = chat.NewSession(cfg.MaxHistory, cfg.MaxContexts)
		cmd.Printf("Started session %s\n", sess.ID)
	}

	eng, err := chat.NewEngine(ctx, chat.Options{
		CodeSource: cfg.CodeSource,
		DocsSource: cfg.DocsSource,
		Exclude:    cfg.Exclude,
		CacheID:    cfg.CacheID,
		IndexDir:   cfg.IndexDir(),
		ReposDir:   cfg.ReposDir(),
		Decision:   cfg.Decision,
		Generation: cfg.Generation,
	})
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		cmd.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		err := eng.AskStream(ctx, sess, question, func(chunk string) {
			cmd.Print(chunk)
		})
		cmd.Println()
		if err != nil {
			return err
		}

		if err := store.Save(sess.Stored()); err != nil {
			return err
		}

		status := sess.Contexts.Status()
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s | %d contexts | ~%d tokens]\n",
			status.LastAction, status.ContextCount, status.TokenCount)
	}

	return scanner.Err()
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
