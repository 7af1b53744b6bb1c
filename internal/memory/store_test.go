package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskgraph/taskgraph/internal/llm"
	"github.com/taskgraph/taskgraph/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.InitializeTaskMemory())
	return s
}

func TestInitializeTaskMemory_CreatesBankAndUploadsDir(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.InitializeTaskMemory())
	require.DirExists(t, filepath.Join(dir, "memory_bank"))
	require.DirExists(t, filepath.Join(dir, "memory_bank", "uploaded_files"))
}

func TestLoadMemory_AbsentReturnsDefault(t *testing.T) {
	s := newTestStore(t)
	content, err := s.LoadMemory("nope.md", LoadOptions{DefaultValue: "fallback"})
	require.NoError(t, err)
	require.Equal(t, "fallback", content)
}

func TestOverwriteThenLoad_RoundTrips(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.OverwriteMemory("notes.md", "hello", OverwriteOptions{}))
	content, err := s.LoadMemory("notes.md", LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, "hello", content)

	require.NoError(t, s.OverwriteMemory("notes.md", "replaced", OverwriteOptions{}))
	content, err = s.LoadMemory("notes.md", LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, "replaced", content)
}

func TestAppendToMemory_NeverRewrites(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AppendToMemory("log.txt", "first"))
	require.NoError(t, s.AppendToMemory("log.txt", "second"))
	content, err := s.LoadMemory("log.txt", LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, "first\nsecond\n", content)
}

func TestKeyFindings_AppendAndLatest(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AddKeyFinding(models.KeyFinding{
			ID:            string(rune('a' + i)),
			SourceToolName: "WebSearchTool",
			Data:          models.KeyFindingData{Kind: models.KeyFindingInline, Content: i},
		}))
	}
	latest, err := s.GetLatestKeyFindings(2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, "d", latest[0].ID)
	require.Equal(t, "e", latest[1].ID)
}

func TestSanitizeUploadName_StripsPathComponents(t *testing.T) {
	require.Equal(t, "evil.txt", sanitizeUploadName("../../evil.txt"))
	require.Equal(t, "plain.txt", sanitizeUploadName("plain.txt"))
}

func TestCWC_OverwriteIsWholeFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.OverwriteCWC(models.CurrentWorkingContext{
		SummaryOfProgress: "step one done",
		NextObjective:     "do step two",
		ConfidenceScore:   0.5,
	}))
	loaded, err := s.LoadCWC()
	require.NoError(t, err)
	require.Equal(t, "step one done", loaded.SummaryOfProgress)

	require.NoError(t, s.OverwriteCWC(models.CurrentWorkingContext{
		SummaryOfProgress: "step two done",
		NextObjective:     "synthesize",
		ConfidenceScore:   0.9,
	}))
	loaded, err = s.LoadCWC()
	require.NoError(t, err)
	require.Equal(t, "step two done", loaded.SummaryOfProgress)
}

func TestGetSummarizedMemory_ShortContentSkipsModel(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.OverwriteMemory("short.md", "tiny", OverwriteOptions{}))
	adapter := llm.NewFakeAdapter("should not be called")

	content, err := s.GetSummarizedMemory(context.Background(), "short.md", adapter, SummarizeOptions{
		MaxOriginalLength: 1000,
		PromptTemplate:    "Summarize: {text_to_summarize}",
	})
	require.NoError(t, err)
	require.Equal(t, "tiny", content)
	require.Equal(t, 0, adapter.Calls)
}

func TestGetSummarizedMemory_CacheHitAvoidsSecondCall(t *testing.T) {
	s := newTestStore(t)
	longContent := make([]byte, 5000)
	for i := range longContent {
		longContent[i] = 'x'
	}
	require.NoError(t, s.OverwriteMemory("long.md", string(longContent), OverwriteOptions{}))
	adapter := llm.NewFakeAdapter("summary v1", "summary v2")
	opts := SummarizeOptions{
		MaxOriginalLength: 1000,
		PromptTemplate:    "Summarize: {text_to_summarize}",
		CacheSummary:      true,
		Now:               "2026-07-31T00:00:00Z",
	}

	first, err := s.GetSummarizedMemory(context.Background(), "long.md", adapter, opts)
	require.NoError(t, err)
	require.Equal(t, "summary v1", first)
	require.Equal(t, 1, adapter.Calls)

	second, err := s.GetSummarizedMemory(context.Background(), "long.md", adapter, opts)
	require.NoError(t, err)
	require.Equal(t, "summary v1", second)
	require.Equal(t, 1, adapter.Calls, "cache hit must not invoke the adapter again")
}

func TestGetSummarizedMemory_ContentChangeInvalidatesCache(t *testing.T) {
	s := newTestStore(t)
	longContent := make([]byte, 5000)
	for i := range longContent {
		longContent[i] = 'x'
	}
	require.NoError(t, s.OverwriteMemory("long.md", string(longContent), OverwriteOptions{}))
	adapter := llm.NewFakeAdapter("summary v1", "summary v2")
	opts := SummarizeOptions{
		MaxOriginalLength: 1000,
		PromptTemplate:    "Summarize: {text_to_summarize}",
		CacheSummary:      true,
		Now:               "2026-07-31T00:00:00Z",
	}
	_, err := s.GetSummarizedMemory(context.Background(), "long.md", adapter, opts)
	require.NoError(t, err)

	longContent[0] = 'y'
	require.NoError(t, s.OverwriteMemory("long.md", string(longContent), OverwriteOptions{}))
	second, err := s.GetSummarizedMemory(context.Background(), "long.md", adapter, opts)
	require.NoError(t, err)
	require.Equal(t, "summary v2", second)
	require.Equal(t, 2, adapter.Calls)
}
