package clientsync

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ai-studio/internal/models"
)

type save struct {
	fileID  string
	content string
}

type recordingSaver struct {
	mu    sync.Mutex
	saves []save
	fail  error
}

func (s *recordingSaver) SaveFile(_ context.Context, fileID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.saves = append(s.saves, save{fileID, content})
	return nil
}

func (s *recordingSaver) Saves() []save {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]save(nil), s.saves...)
}

func (s *recordingSaver) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func TestDebounceCoalescesEdits(t *testing.T) {
	saver := &recordingSaver{}
	a := NewAutosaver(saver, 20*time.Millisecond)

	require.NoError(t, a.Edit("f1", "a"))
	require.NoError(t, a.Edit("f1", "ab"))
	require.NoError(t, a.Edit("f1", "abc"))

	require.Eventually(t, func() bool { return len(saver.Saves()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []save{{"f1", "abc"}}, saver.Saves())
	require.False(t, a.Pending("f1"))
}

// A file switch inside the quiet period still saves the previous file.
func TestSwitchFileMidDebounceFlushesPreviousFile(t *testing.T) {
	saver := &recordingSaver{}
	w := NewWorkspace(NewAutosaver(saver, time.Hour))
	ctx := context.Background()

	require.NoError(t, w.OpenFile(ctx, "index.html"))
	require.NoError(t, w.Edit("x"))
	require.Empty(t, saver.Saves())

	require.NoError(t, w.OpenFile(ctx, "style.css"))
	require.Equal(t, []save{{"index.html", "x"}}, saver.Saves())
	require.Equal(t, "style.css", w.FileID())
}

func TestSwitchProjectMidDebounceFlushesPreviousFile(t *testing.T) {
	saver := &recordingSaver{}
	w := NewWorkspace(NewAutosaver(saver, time.Hour))
	ctx := context.Background()

	require.NoError(t, w.SwitchProject(ctx, "p1", nil))
	require.NoError(t, w.OpenFile(ctx, "index.html"))
	require.NoError(t, w.Edit("x"))

	require.NoError(t, w.SwitchProject(ctx, "p2", []models.ChatMessage{{ID: 9, Role: models.RoleUser, Content: "hi"}}))
	require.Equal(t, []save{{"index.html", "x"}}, saver.Saves())
	require.Equal(t, "p2", w.ProjectID())
	require.Empty(t, w.FileID())
	require.Len(t, w.Messages(), 1)
}

func TestFailedFlushKeepsFileOpenAndEdit(t *testing.T) {
	saver := &recordingSaver{}
	saver.setFail(errors.New("offline"))
	a := NewAutosaver(saver, time.Hour)
	w := NewWorkspace(a)
	ctx := context.Background()

	require.NoError(t, w.OpenFile(ctx, "a.js"))
	require.NoError(t, w.Edit("x"))
	require.Error(t, w.OpenFile(ctx, "b.js"))
	require.Equal(t, "a.js", w.FileID())
	require.True(t, a.Pending("a.js"))

	saver.setFail(nil)
	require.NoError(t, w.OpenFile(ctx, "b.js"))
	require.Equal(t, []save{{"a.js", "x"}}, saver.Saves())
}

func TestEditWithoutOpenFile(t *testing.T) {
	w := NewWorkspace(NewAutosaver(&recordingSaver{}, time.Hour))
	require.ErrorIs(t, w.Edit("x"), ErrNoOpenFile)
}

func TestCloseFlushesAndRejects(t *testing.T) {
	saver := &recordingSaver{}
	a := NewAutosaver(saver, time.Hour)
	require.NoError(t, a.Edit("f1", "1"))
	require.NoError(t, a.Edit("f2", "2"))

	require.NoError(t, a.Close(context.Background()))
	require.ElementsMatch(t, []save{{"f1", "1"}, {"f2", "2"}}, saver.Saves())
	require.ErrorIs(t, a.Edit("f1", "3"), ErrClosed)
}

func TestSwitchProjectClearsStream(t *testing.T) {
	w := NewWorkspace(NewAutosaver(&recordingSaver{}, time.Hour))
	ctx := context.Background()
	require.NoError(t, w.SwitchProject(ctx, "p1", nil))

	id := w.BeginStream()
	_, ok := w.AppendChunk(id, "partial reply")
	require.True(t, ok)

	require.NoError(t, w.SwitchProject(ctx, "p2", nil))
	require.False(t, w.Streaming())
	require.Empty(t, w.RenderedReply())

	_, ok = w.AppendChunk(id, " late chunk")
	require.False(t, ok)
	w.EndStream(id, true, "gpt-4o")
	require.Empty(t, w.Messages())
}

func TestStreamCompletesIntoConversation(t *testing.T) {
	w := NewWorkspace(NewAutosaver(&recordingSaver{}, time.Hour))
	require.NoError(t, w.SwitchProject(context.Background(), "p1", nil))

	id := w.BeginStream()
	for _, c := range []string{"# Ti", "tle\n\n", "done"} {
		_, ok := w.AppendChunk(id, c)
		require.True(t, ok)
	}
	require.Contains(t, w.RenderedReply(), "<h1")
	w.EndStream(id, true, "gpt-4o")

	msgs := w.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "# Title\n\ndone", msgs[0].Content)
	require.Equal(t, "gpt-4o", *msgs[0].Model)
	require.False(t, w.Streaming())
}

func TestAbortedStreamIsDropped(t *testing.T) {
	w := NewWorkspace(NewAutosaver(&recordingSaver{}, time.Hour))
	id := w.BeginStream()
	w.AppendChunk(id, "half")
	w.EndStream(id, false, "")
	require.Empty(t, w.Messages())
}

func TestRendererToleratesPartialMarkdown(t *testing.T) {
	r := NewStreamRenderer()
	doc := "Here:\n\n```go\nfunc main() {\n| a | b |\n|---|\n[link](http://x\n**bold _it\n> quote\n1. item"
	for _, ch := range strings.Split(doc, "") {
		require.NotPanics(t, func() { r.Append(ch) })
	}
	require.Equal(t, doc, r.Text())
	require.NotEmpty(t, r.HTML())

	r.Reset()
	require.Empty(t, r.Text())
	require.Empty(t, r.HTML())
}
