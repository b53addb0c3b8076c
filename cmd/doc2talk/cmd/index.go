package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/unclecode/doc2talk/internal/config"
	"github.com/unclecode/doc2talk/internal/engine"
	"github.com/unclecode/doc2talk/internal/resolver"
)

// newIndexCmd creates the index command, which builds the knowledge
// graph and persists the cache without starting a chat.
func newIndexCmd() *cobra.Command {
	var (
		codeSource string
		docsSource string
		exclude    []string
		cacheID    string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the knowledge graph cache for a source pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			start := time.Now()
			dg, err := engine.Build(cmd.Context(), engine.BuildOptions{
				CodeSource: codeSource,
				DocsSource: docsSource,
				Exclude:    exclude,
				Resolvers: []resolver.Resolver{
					resolver.Local{},
					resolver.NewRemote(cfg.ReposDir()),
				},
			})
			if err != nil {
				return err
			}
			defer func() { _ = dg.Close() }()

			id := cacheID
			if id == "" {
				id = engine.CacheID(codeSource, docsSource)
			}
			path := engine.CachePath(cfg.IndexDir(), id)
			if err := dg.Persist(path); err != nil {
				return err
			}

			cmd.Printf("Indexed %d nodes in %s\n", len(dg.Graph.Nodes), time.Since(start).Round(time.Millisecond))
			cmd.Printf("Cache written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&codeSource, "code", "", "Code source (local path or repository URL)")
	cmd.Flags().StringVar(&docsSource, "docs", "", "Docs source (local path or repository URL)")
	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, "Glob pattern to exclude (repeatable)")
	cmd.Flags().StringVar(&cacheID, "cache-id", "", "Index cache identifier override")

	return cmd
}
