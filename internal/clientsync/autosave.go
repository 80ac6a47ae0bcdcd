// Package clientsync keeps an editor's local state in step with the server:
// debounced file saves, project switches and the streaming chat buffer.
package clientsync

import (
	"context"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/suPer8Hu/ai-studio/internal/client"
	"github.com/suPer8Hu/ai-studio/internal/log"
	"go.uber.org/zap"
)

const DefaultQuietPeriod = time.Second

var ErrClosed = errors.New("autosaver is closed")

type FileSaver interface {
	SaveFile(ctx context.Context, fileID, content string) error
}

type apiSaver struct {
	c *client.Client
}

// APISaver saves through the studio API.
func APISaver(c *client.Client) FileSaver { return apiSaver{c: c} }

func (s apiSaver) SaveFile(ctx context.Context, fileID, content string) error {
	_, err := s.c.UpdateFile(ctx, fileID, client.FilePatch{Content: &content})
	return err
}

type pendingEdit struct {
	content string
	timer   *time.Timer
	gen     uint64
}

// Autosaver buffers the latest content per file and saves it once no edit
// has arrived for the quiet period. Saves run one at a time, so a flush
// returns only after any save already in progress has finished.
type Autosaver struct {
	saver FileSaver
	quiet time.Duration

	saveMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*pendingEdit
	gen     uint64
	closed  bool
}

func NewAutosaver(saver FileSaver, quiet time.Duration) *Autosaver {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Autosaver{
		saver:   saver,
		quiet:   quiet,
		pending: make(map[string]*pendingEdit),
	}
}

// Edit records content for fileID and restarts its quiet period.
func (a *Autosaver) Edit(fileID, content string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	p, ok := a.pending[fileID]
	if !ok {
		p = &pendingEdit{}
		a.pending[fileID] = p
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	a.gen++
	gen := a.gen
	p.content, p.gen = content, gen
	p.timer = time.AfterFunc(a.quiet, func() { a.fire(fileID, gen) })
	return nil
}

func (a *Autosaver) Pending(fileID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[fileID]
	return ok
}

func (a *Autosaver) fire(fileID string, gen uint64) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	p := a.take(fileID, gen)
	if p == nil {
		return
	}
	if err := a.saver.SaveFile(context.Background(), fileID, p.content); err != nil {
		log.L().Warn("autosave failed, keeping edit for next flush",
			zap.String("file_id", fileID), zap.Error(err))
		a.restore(fileID, p)
	}
}

// take removes the pending edit. gen 0 matches any generation.
func (a *Autosaver) take(fileID string, gen uint64) *pendingEdit {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.pending[fileID]
	if !ok || (gen != 0 && p.gen != gen) {
		return nil
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	delete(a.pending, fileID)
	return p
}

// restore puts back a failed edit unless a newer one arrived meanwhile.
func (a *Autosaver) restore(fileID string, p *pendingEdit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, newer := a.pending[fileID]; newer {
		return
	}
	p.timer = nil
	a.pending[fileID] = p
}

// FlushFile saves fileID's pending edit now, if there is one.
func (a *Autosaver) FlushFile(ctx context.Context, fileID string) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	p := a.take(fileID, 0)
	if p == nil {
		return nil
	}
	if err := a.saver.SaveFile(ctx, fileID, p.content); err != nil {
		a.restore(fileID, p)
		return errors.Wrapf(err, "save file %s", fileID)
	}
	return nil
}

// Flush saves every pending edit. It keeps going after a failure and
// returns the first error.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	ids := make([]string, 0, len(a.pending))
	for id := range a.pending {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	var first error
	for _, id := range ids {
		if err := a.FlushFile(ctx, id); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close flushes and rejects further edits.
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.Flush(ctx)
}
