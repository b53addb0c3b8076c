package chat

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/unclecode/doc2talk/internal/chatctx"
	"github.com/unclecode/doc2talk/internal/engine"
	"github.com/unclecode/doc2talk/internal/llm"
	"github.com/unclecode/doc2talk/internal/resolver"
)

// personaPrompt is the fixed assistant persona for generation calls.
const personaPrompt = `You are DocTalk, an AI assistant for code documentation and explanation.
Answer development questions about the codebase based on the provided context.
Ensure your answers are precise and relevant to the question, using the attached context for guidance,
and avoid hallucinating or fabricating information.

Use this context:
<context>
%s
</context>

Answer in markdown.`

// historyWindow is how many trailing conversation messages accompany a
// generation call.
const historyWindow = 6

// Options configures an Engine.
type Options struct {
	CodeSource string
	DocsSource string
	Exclude    []string

	// CacheID overrides the derived index cache identifier.
	CacheID string

	// IndexDir is where index cache files live.
	IndexDir string

	// ReposDir is the remote clone cache root.
	ReposDir string

	// ForceRebuild skips the index cache on startup.
	ForceRebuild bool

	Decision   llm.Config
	Generation llm.Config

	// Client overrides the LLM client; defaults to the OpenAI client.
	Client llm.Client
}

// Engine ties the knowledge graph to the conversation loop. A single
// engine serializes each session's questions; independent sessions may
// share it because the graph is read-only after build.
type Engine struct {
	docGraph   *engine.DocGraph
	decider    *Decider
	client     llm.Client
	generation llm.Config
}

// NewEngine loads the knowledge graph from the index cache when present,
// otherwise builds it from the sources and persists it for next time.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	cacheID := opts.CacheID
	if cacheID == "" {
		cacheID = engine.CacheID(opts.CodeSource, opts.DocsSource)
	}
	cachePath := engine.CachePath(opts.IndexDir, cacheID)

	var dg *engine.DocGraph
	if _, err := os.Stat(cachePath); err == nil && !opts.ForceRebuild {
		start := time.Now()
		dg, err = engine.Load(cachePath)
		if err != nil {
			return nil, err
		}
		slog.Info("graph_loaded",
			slog.String("cache", cachePath),
			slog.Duration("elapsed", time.Since(start)))
	} else {
		start := time.Now()
		dg, err = engine.Build(ctx, engine.BuildOptions{
			CodeSource: opts.CodeSource,
			DocsSource: opts.DocsSource,
			Exclude:    opts.Exclude,
			Resolvers: []resolver.Resolver{
				resolver.Local{},
				resolver.NewRemote(opts.ReposDir),
			},
		})
		if err != nil {
			return nil, err
		}
		slog.Info("graph_build_finished", slog.Duration("elapsed", time.Since(start)))

		if err := dg.Persist(cachePath); err != nil {
			return nil, err
		}
		slog.Info("graph_cached", slog.String("cache", cachePath))
	}

	client := opts.Client
	if client == nil {
		client = llm.NewOpenAIClient()
	}

	return &Engine{
		docGraph:   dg,
		decider:    NewDecider(client, opts.Decision),
		client:     client,
		generation: opts.Generation,
	}, nil
}

// Close releases the graph's backing resources.
func (e *Engine) Close() error {
	return e.docGraph.Close()
}

// Graph exposes the underlying DocGraph, e.g. for direct queries.
func (e *Engine) Graph() *engine.DocGraph {
	return e.docGraph
}

// Decide classifies a question against the session's current context.
func (e *Engine) Decide(ctx context.Context, sess *Session, question string) Decision {
	return e.decider.Decide(ctx, sess.Contexts.CurrentContext(), sess.LastUserQuestion(), question)
}

// UpdateContext retrieves context for the question and applies it to the
// session according to the decision. A none decision leaves the context
// manager untouched.
func (e *Engine) UpdateContext(sess *Session, question string, decision Decision) {
	if decision == DecisionNone {
		return
	}
	newContext := e.docGraph.Query(question)
	mode := chatctx.ModeAppend
	if decision == DecisionNew {
		mode = chatctx.ModeReplace
	}
	sess.Contexts.Update(newContext, mode)
}

// AskStream answers a question, pushing response chunks to onChunk as
// they arrive. The effects happen in order: decision, context update,
// then streaming. A generation failure surfaces one error chunk and the
// stream terminates cleanly; the assistant turn (including any error
// chunk) is recorded once the stream ends. When the caller abandons the
// stream by cancelling ctx, the partial reply is not recorded.
func (e *Engine) AskStream(ctx context.Context, sess *Session, question string, onChunk func(string)) error {
	decision := e.Decide(ctx, sess, question)
	e.UpdateContext(sess, question, decision)
	sess.AddMessage(llm.RoleUser, question)

	messages := e.generationMessages(sess)

	var reply strings.Builder
	err := e.client.Stream(ctx, e.generation, messages, func(chunk string) {
		reply.WriteString(chunk)
		onChunk(chunk)
	})
	if err != nil {
		if ctx.Err() != nil {
			// Caller abandoned the stream; the partial reply is dropped.
			return ctx.Err()
		}
		errChunk := fmt.Sprintf("AI Error: %v", err)
		reply.WriteString(errChunk)
		onChunk(errChunk)
	}

	sess.AddMessage(llm.RoleAssistant, reply.String())
	return nil
}

// Ask answers a question without streaming and returns the full reply.
func (e *Engine) Ask(ctx context.Context, sess *Session, question string) (string, error) {
	decision := e.Decide(ctx, sess, question)
	e.UpdateContext(sess, question, decision)
	sess.AddMessage(llm.RoleUser, question)

	reply, err := e.client.Complete(ctx, e.generation, e.generationMessages(sess))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		reply = fmt.Sprintf("AI Error: %v", err)
	}

	sess.AddMessage(llm.RoleAssistant, reply)
	return reply, nil
}

func (e *Engine) generationMessages(sess *Session) []llm.Message {
	system := llm.Message{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(personaPrompt, sess.Contexts.CurrentContext()),
	}
	return append([]llm.Message{system}, sess.Recent(historyWindow)...)
}
