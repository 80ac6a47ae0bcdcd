package clientsync

import (
	"context"
	"sync"

	errors "github.com/Laisky/errors/v2"
	"github.com/suPer8Hu/ai-studio/internal/models"
)

var ErrNoOpenFile = errors.New("no file is open")

// Workspace is the editor state for one signed-in user: the open project and
// file, the conversation and the in-flight assistant reply.
type Workspace struct {
	autosave *Autosaver
	render   *StreamRenderer

	mu        sync.Mutex
	projectID string
	fileID    string
	messages  []models.ChatMessage
	streamID  uint64
	streaming bool
}

func NewWorkspace(autosave *Autosaver) *Workspace {
	return &Workspace{autosave: autosave, render: NewStreamRenderer()}
}

func (w *Workspace) ProjectID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.projectID
}

func (w *Workspace) FileID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fileID
}

func (w *Workspace) Messages() []models.ChatMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.ChatMessage(nil), w.messages...)
}

// Edit buffers new content for the open file.
func (w *Workspace) Edit(content string) error {
	w.mu.Lock()
	fileID := w.fileID
	w.mu.Unlock()
	if fileID == "" {
		return ErrNoOpenFile
	}
	return w.autosave.Edit(fileID, content)
}

// OpenFile makes fileID current. The previous file's pending edit is saved
// first; on failure the previous file stays open.
func (w *Workspace) OpenFile(ctx context.Context, fileID string) error {
	prev := w.FileID()
	if prev != "" && prev != fileID {
		if err := w.autosave.FlushFile(ctx, prev); err != nil {
			return err
		}
	}

	w.mu.Lock()
	w.fileID = fileID
	w.mu.Unlock()
	return nil
}

// SwitchProject saves the open file's pending edit, then replaces the
// conversation and drops any in-flight reply of the old project.
func (w *Workspace) SwitchProject(ctx context.Context, projectID string, messages []models.ChatMessage) error {
	if prev := w.FileID(); prev != "" {
		if err := w.autosave.FlushFile(ctx, prev); err != nil {
			return err
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.projectID = projectID
	w.fileID = ""
	w.messages = append([]models.ChatMessage(nil), messages...)
	w.streamID++
	w.streaming = false
	w.render.Reset()
	return nil
}

// BeginStream starts a new assistant reply and returns its handle. Chunks
// for a stale handle are ignored.
func (w *Workspace) BeginStream() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.streamID++
	w.streaming = true
	w.render.Reset()
	return w.streamID
}

// AppendChunk returns the rendered reply so far and whether the chunk was
// accepted.
func (w *Workspace) AppendChunk(id uint64, chunk string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.streaming || id != w.streamID {
		return "", false
	}
	return w.render.Append(chunk), true
}

// EndStream closes the reply. A completed reply joins the conversation; an
// aborted or failed one is dropped.
func (w *Workspace) EndStream(id uint64, completed bool, model string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.streaming || id != w.streamID {
		return
	}
	if completed {
		m := model
		w.messages = append(w.messages, models.ChatMessage{
			ProjectID: w.projectID,
			Role:      models.RoleAssistant,
			Content:   w.render.Text(),
			Model:     &m,
		})
	}
	w.streaming = false
	w.render.Reset()
}

func (w *Workspace) Streaming() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.streaming
}

func (w *Workspace) RenderedReply() string {
	return w.render.HTML()
}
