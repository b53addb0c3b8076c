package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclecode/doc2talk/internal/engine"
	"github.com/unclecode/doc2talk/internal/llm"
)

// fakeClient scripts LLM responses for tests. The first Complete call is
// the decision; Stream plays back chunks or fails.
type fakeClient struct {
	decisionResponse string
	decisionErr      error
	streamChunks     []string
	streamErr        error

	completeCalls [][]llm.Message
	streamCalls   [][]llm.Message
}

func (f *fakeClient) Complete(ctx context.Context, cfg llm.Config, messages []llm.Message) (string, error) {
	f.completeCalls = append(f.completeCalls, messages)
	return f.decisionResponse, f.decisionErr
}

func (f *fakeClient) Stream(ctx context.Context, cfg llm.Config, messages []llm.Message, onChunk func(string)) error {
	f.streamCalls = append(f.streamCalls, messages)
	for _, chunk := range f.streamChunks {
		onChunk(chunk)
	}
	return f.streamErr
}

func testEngine(t *testing.T, client llm.Client) *Engine {
	t.Helper()

	codeRoot := t.TempDir()
	docsRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(codeRoot, "a.py"), []byte("class Foo:\n    pass\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docsRoot, "a.md"), []byte("## Intro\nFoo is great\n"), 0o644))

	dg, err := engine.Build(context.Background(), engine.BuildOptions{
		CodeSource: codeRoot,
		DocsSource: docsRoot,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dg.Close() })

	return &Engine{
		docGraph:   dg,
		decider:    NewDecider(client, llm.DecisionDefaults()),
		client:     client,
		generation: llm.GenerationDefaults(),
	}
}

func TestParseDecision(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Decision
		ok   bool
	}{
		{"new", `<response>{"decision":"new"}</response>`, DecisionNew, true},
		{"additional", `<response>{"decision":"additional"}</response>`, DecisionAdditional, true},
		{"none", `<response>{"decision":"none"}</response>`, DecisionNone, true},
		{"surrounding prose", `Sure! <response>{"decision":"none"}</response> Done.`, DecisionNone, true},
		{"missing tags", `{"decision":"new"}`, "", false},
		{"unterminated", `<response>{"decision":"new"}`, "", false},
		{"bad json", `<response>decision=new</response>`, "", false},
		{"unknown value", `<response>{"decision":"maybe"}</response>`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseDecision(tc.raw)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestDecider_FallsBackToNewOnTransportFailure(t *testing.T) {
	client := &fakeClient{decisionErr: errors.New("boom")}
	d := NewDecider(client, llm.DecisionDefaults())

	assert.Equal(t, DecisionNew, d.Decide(context.Background(), "", "", "q"))
}

func TestDecider_FallsBackToNewOnMalformedResponse(t *testing.T) {
	client := &fakeClient{decisionResponse: "no tags here"}
	d := NewDecider(client, llm.DecisionDefaults())

	assert.Equal(t, DecisionNew, d.Decide(context.Background(), "", "", "q"))
}

func TestDecider_PromptEmbedsContextAndQuestions(t *testing.T) {
	client := &fakeClient{decisionResponse: `<response>{"decision":"none"}</response>`}
	d := NewDecider(client, llm.DecisionDefaults())

	d.Decide(context.Background(), "the context", "old question", "new question")

	require.Len(t, client.completeCalls, 1)
	prompt := client.completeCalls[0][0].Content
	assert.Contains(t, prompt, "the context")
	assert.Contains(t, prompt, "Last Question: old question")
	assert.Contains(t, prompt, "New Question: new question")
}

// Decision "additional" appends: two existing contexts become three.
func TestEngine_AdditionalDecisionAppendsContext(t *testing.T) {
	client := &fakeClient{
		decisionResponse: `<response>{"decision":"additional"}</response>`,
		streamChunks:     []string{"ok"},
	}
	e := testEngine(t, client)

	sess := NewSession(50, 5)
	sess.Contexts.Update("ctx-one", "append")
	sess.Contexts.Update("ctx-two", "append")

	err := e.AskStream(context.Background(), sess, "tell me about Foo", func(string) {})
	require.NoError(t, err)

	assert.Equal(t, 3, sess.Contexts.Status().ContextCount)
	assert.Equal(t, "append", string(sess.Contexts.LastAction()))
}

// A malformed decision response downgrades to "new": the context manager
// is replaced with a single fresh context.
func TestEngine_MalformedDecisionReplacesContext(t *testing.T) {
	client := &fakeClient{
		decisionResponse: "garbage without tags",
		streamChunks:     []string{"ok"},
	}
	e := testEngine(t, client)

	sess := NewSession(50, 5)
	sess.Contexts.Update("stale-one", "append")
	sess.Contexts.Update("stale-two", "append")

	err := e.AskStream(context.Background(), sess, "tell me about Foo", func(string) {})
	require.NoError(t, err)

	contexts := sess.Contexts.Contexts()
	require.Len(t, contexts, 1)
	assert.Contains(t, contexts[0], "# Documentation Context")
}

func TestEngine_NoneDecisionLeavesContexts(t *testing.T) {
	client := &fakeClient{
		decisionResponse: `<response>{"decision":"none"}</response>`,
		streamChunks:     []string{"ok"},
	}
	e := testEngine(t, client)

	sess := NewSession(50, 5)
	sess.Contexts.Update("keep-me", "append")

	err := e.AskStream(context.Background(), sess, "and then?", func(string) {})
	require.NoError(t, err)

	assert.Equal(t, []string{"keep-me"}, sess.Contexts.Contexts())
}

func TestEngine_AskStreamRecordsHistoryAfterClose(t *testing.T) {
	client := &fakeClient{
		decisionResponse: `<response>{"decision":"new"}</response>`,
		streamChunks:     []string{"Foo ", "is ", "a class."},
	}
	e := testEngine(t, client)
	sess := NewSession(50, 5)

	var received strings.Builder
	err := e.AskStream(context.Background(), sess, "what is Foo?", func(chunk string) {
		received.WriteString(chunk)
	})
	require.NoError(t, err)

	assert.Equal(t, "Foo is a class.", received.String())
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, llm.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, "what is Foo?", sess.Messages[0].Content)
	assert.Equal(t, llm.RoleAssistant, sess.Messages[1].Role)
	assert.Equal(t, "Foo is a class.", sess.Messages[1].Content)
}

func TestEngine_StreamFailureYieldsSingleErrorChunk(t *testing.T) {
	client := &fakeClient{
		decisionResponse: `<response>{"decision":"new"}</response>`,
		streamErr:        errors.New("connection reset"),
	}
	e := testEngine(t, client)
	sess := NewSession(50, 5)

	var chunks []string
	err := e.AskStream(context.Background(), sess, "what is Foo?", func(chunk string) {
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "AI Error:")
}

func TestEngine_GenerationPromptCarriesContextAndHistory(t *testing.T) {
	client := &fakeClient{
		decisionResponse: `<response>{"decision":"new"}</response>`,
		streamChunks:     []string{"ok"},
	}
	e := testEngine(t, client)
	sess := NewSession(50, 5)
	for i := 0; i < 10; i++ {
		sess.AddMessage(llm.RoleUser, "old question")
		sess.AddMessage(llm.RoleAssistant, "old answer")
	}

	err := e.AskStream(context.Background(), sess, "what is Foo?", func(string) {})
	require.NoError(t, err)

	require.Len(t, client.streamCalls, 1)
	messages := client.streamCalls[0]

	// One system message plus the last six history entries.
	require.Len(t, messages, 1+historyWindow)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Contains(t, messages[0].Content, "<context>")
	assert.Contains(t, messages[0].Content, "# Documentation Context")
	assert.Equal(t, "what is Foo?", messages[len(messages)-1].Content)
}

func TestSession_HistoryTruncation(t *testing.T) {
	sess := NewSession(4, 5)
	for i := 0; i < 10; i++ {
		sess.AddMessage(llm.RoleUser, "q")
		sess.AddMessage(llm.RoleAssistant, "a")
	}

	assert.Len(t, sess.Messages, 4)
}

func TestSession_StoredRoundTrip(t *testing.T) {
	sess := NewSession(50, 5)
	sess.AddMessage(llm.RoleUser, "q1")
	sess.AddMessage(llm.RoleAssistant, "a1")
	sess.Contexts.Update("ctx", "append")

	resumed := ResumeSession(sess.Stored(), 50, 5)

	assert.Equal(t, sess.ID, resumed.ID)
	assert.Equal(t, sess.Messages, resumed.Messages)
	assert.Equal(t, []string{"ctx"}, resumed.Contexts.Contexts())
	assert.False(t, resumed.IsNew)
}
