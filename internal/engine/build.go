// Package engine orchestrates the retrieval core: building the knowledge
// graph from resolved source trees and answering queries over it.
package engine

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/unclecode/doc2talk/internal/chunk"
	docerrors "github.com/unclecode/doc2talk/internal/errors"
	"github.com/unclecode/doc2talk/internal/graph"
	"github.com/unclecode/doc2talk/internal/index"
	"github.com/unclecode/doc2talk/internal/resolver"
)

// DocGraph is a built knowledge graph together with the inputs that
// produced it. It is read-only after Build and safe to share.
type DocGraph struct {
	Graph    *graph.Graph
	CodeRoot string
	DocsRoot string
	Exclude  []string

	loaded *index.Loaded
}

// BuildOptions configures a graph build.
type BuildOptions struct {
	// CodeSource and DocsSource are source references; at least one must
	// be non-empty.
	CodeSource string
	DocsSource string

	// Exclude holds glob patterns matched against full file paths.
	Exclude []string

	// Resolvers is the ordered resolver list. Defaults to local-only
	// when nil; callers add the remote resolver with its cache root.
	Resolvers []resolver.Resolver
}

// Build resolves the sources and constructs the knowledge graph. Code
// chunks are inserted before markdown chunks so that class mentions can
// be linked; files that fail parsing are skipped with a warning.
func Build(ctx context.Context, opts BuildOptions) (*DocGraph, error) {
	if opts.CodeSource == "" && opts.DocsSource == "" {
		return nil, docerrors.EmptySources()
	}
	resolvers := opts.Resolvers
	if resolvers == nil {
		resolvers = []resolver.Resolver{resolver.Local{}}
	}

	d := &DocGraph{Graph: graph.New(), Exclude: opts.Exclude}

	if opts.CodeSource != "" {
		r, err := resolver.For(opts.CodeSource, resolvers)
		if err != nil {
			return nil, err
		}
		if d.CodeRoot, err = r.Resolve(opts.CodeSource); err != nil {
			return nil, err
		}
	}
	if opts.DocsSource != "" {
		r, err := resolver.For(opts.DocsSource, resolvers)
		if err != nil {
			return nil, err
		}
		if d.DocsRoot, err = r.Resolve(opts.DocsSource); err != nil {
			return nil, err
		}
	}

	if err := d.build(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// fileChunks pairs a source file with its extracted chunks.
type fileChunks struct {
	path   string
	chunks []*chunk.Chunk
}

func (d *DocGraph) build(ctx context.Context) error {
	if d.CodeRoot != "" {
		files, err := d.collectFiles(d.CodeRoot, ".py")
		if err != nil {
			return err
		}
		// A tree-sitter parser is not safe for concurrent use; each
		// worker gets its own.
		code, err := chunkFiles(ctx, files, func(data []byte, path string) ([]*chunk.Chunk, error) {
			pc := chunk.NewPythonChunker()
			defer pc.Close()
			return pc.Chunk(ctx, data, path)
		})
		if err != nil {
			return err
		}
		d.insert(code)
	}

	if d.DocsRoot != "" {
		files, err := d.collectFiles(d.DocsRoot, ".md")
		if err != nil {
			return err
		}
		docs, err := chunkFiles(ctx, files, func(data []byte, path string) ([]*chunk.Chunk, error) {
			return chunk.Markdown(string(data), path), nil
		})
		if err != nil {
			return err
		}
		d.insert(docs)
	}

	slog.Info("graph_built",
		slog.Int("nodes", len(d.Graph.Nodes)),
		slog.Int("documents", len(d.Graph.Documents)),
		slog.Int("classes", len(d.Graph.ClassRegistry)))
	return nil
}

// collectFiles walks root for files with the extension, applying the
// exclude globs against full paths. The result is sorted so insertion
// order is deterministic.
func (d *DocGraph) collectFiles(root, ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || filepath.Ext(path) != ext {
			return nil
		}
		if d.isExcluded(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeInternal, fmt.Sprintf("failed to walk %s", root), err)
	}
	sort.Strings(files)
	return files, nil
}

func (d *DocGraph) isExcluded(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range d.Exclude {
		if ok, err := doublestar.Match(pattern, slashed); err == nil && ok {
			return true
		}
	}
	return false
}

// chunkFiles reads and chunks files concurrently, preserving the given
// file order in the result. Parse failures skip the file with a warning.
func chunkFiles(ctx context.Context, files []string, fn func([]byte, string) ([]*chunk.Chunk, error)) ([]fileChunks, error) {
	results := make([]fileChunks, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				slog.Warn("file_read_failed", slog.String("path", path), slog.String("error", err.Error()))
				return nil
			}
			chunks, err := fn(data, path)
			if err != nil {
				slog.Warn("file_parse_failed", slog.String("path", path), slog.String("error", err.Error()))
				return nil
			}
			results[i] = fileChunks{path: path, chunks: chunks}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// insert adds chunks to the graph in file order.
func (d *DocGraph) insert(files []fileChunks) {
	for _, fc := range files {
		for _, c := range fc.chunks {
			d.Graph.AddNode(c)
		}
	}
}

// Snapshot returns the persistable state of the graph.
func (d *DocGraph) Snapshot() *index.Snapshot {
	return &index.Snapshot{
		Graph:    d.Graph,
		CodeRoot: d.CodeRoot,
		DocsRoot: d.DocsRoot,
		Exclude:  d.Exclude,
	}
}

// Persist writes the graph to path in the binary index format.
func (d *DocGraph) Persist(path string) error {
	return index.Persist(d.Snapshot(), path)
}

// Load reconstructs a DocGraph from a persisted index file. The backing
// memory mapping stays alive until Close.
func Load(path string) (*DocGraph, error) {
	loaded, err := index.Load(path)
	if err != nil {
		return nil, err
	}
	return &DocGraph{
		Graph:    loaded.Graph,
		CodeRoot: loaded.CodeRoot,
		DocsRoot: loaded.DocsRoot,
		Exclude:  loaded.Exclude,
		loaded:   loaded,
	}, nil
}

// Close releases the memory mapping of a loaded graph. It is a no-op for
// graphs built in memory.
func (d *DocGraph) Close() error {
	if d.loaded != nil {
		return d.loaded.Close()
	}
	return nil
}

// CacheID derives the deterministic index cache identifier for a source
// pair.
func CacheID(codeSource, docsSource string) string {
	sum := md5.Sum([]byte(codeSource + "_" + docsSource))
	return "doctalk_" + hex.EncodeToString(sum[:])[:10]
}

// CachePath returns the index file path for a cache id.
func CachePath(indexDir, cacheID string) string {
	return filepath.Join(indexDir, cacheID+".c4ai")
}
