package project

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ai-studio/internal/github"
	"github.com/suPer8Hu/ai-studio/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Project{}, &models.File{}, &models.ChatMessage{}))
	return db
}

func newTestService(t *testing.T, gh GitHubSource) (*Service, *gorm.DB) {
	db := openTestDB(t)
	return NewService(NewRepo(db), gh), db
}

func TestListCreatesWelcomeProject(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	ps, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	require.Equal(t, "Welcome", ps[0].Name)
	require.Len(t, ps[0].Files, 1)

	// only once
	ps, err = svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ps, 1)
}

func TestListNewestFirst(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()

	old, err := svc.Create(ctx, 1, CreateInput{Name: "old"})
	require.NoError(t, err)
	require.NoError(t, db.Model(old).Update("created_at", time.Now().Add(-time.Hour)).Error)
	_, err = svc.Create(ctx, 1, CreateInput{Name: "new"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 2, CreateInput{Name: "someone else"})
	require.NoError(t, err)

	ps, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	require.Equal(t, "new", ps[0].Name)
	require.Equal(t, "old", ps[1].Name)
}

func TestOwnershipCollapsedToNotFound(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, 1, CreateInput{Name: "mine"})
	require.NoError(t, err)
	f, err := svc.CreateFile(ctx, 1, FileInput{ProjectID: p.ID, Path: "a.js"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, p.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, 2, "01NOSUCHPROJECT0000000000")
	require.ErrorIs(t, err, ErrNotFound)

	content := "stolen"
	_, err = svc.UpdateFile(ctx, 2, f.ID, FilePatch{Content: &content})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.DeleteFile(ctx, 2, f.ID), ErrNotFound)
	_, err = svc.CreateFile(ctx, 2, FileInput{ProjectID: p.ID, Path: "b.js"})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, 2, p.ID), ErrNotFound)
}

func TestFilesCRUD(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	p, err := svc.Create(ctx, 1, CreateInput{Name: "site"})
	require.NoError(t, err)

	_, err = svc.CreateFile(ctx, 1, FileInput{ProjectID: p.ID, Path: "b.css", Content: "body{}"})
	require.NoError(t, err)
	a, err := svc.CreateFile(ctx, 1, FileInput{ProjectID: p.ID, Path: "a.js", Content: "1"})
	require.NoError(t, err)
	require.Equal(t, "javascript", a.Language)

	_, err = svc.CreateFile(ctx, 1, FileInput{ProjectID: p.ID, Path: "a.js"})
	require.ErrorIs(t, err, ErrPathExists)

	content := "2"
	updated, err := svc.UpdateFile(ctx, 1, a.ID, FilePatch{Content: &content})
	require.NoError(t, err)
	require.Equal(t, "2", updated.Content)
	require.Equal(t, "javascript", updated.Language)

	got, err := svc.Get(ctx, 1, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Files, 2)
	require.Equal(t, "a.js", got.Files[0].Path)
	require.Equal(t, "b.css", got.Files[1].Path)

	require.NoError(t, svc.DeleteFile(ctx, 1, a.ID))
	got, err = svc.Get(ctx, 1, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Files, 1)
}

func TestUpdateProject(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	p, err := svc.Create(ctx, 1, CreateInput{Name: "before"})
	require.NoError(t, err)

	name, desc := "after", "described"
	got, err := svc.Update(ctx, 1, p.ID, UpdateInput{Name: &name, Description: &desc})
	require.NoError(t, err)
	require.Equal(t, "after", got.Name)
	require.Equal(t, "described", *got.Description)

	blank := "  "
	_, err = svc.Update(ctx, 1, p.ID, UpdateInput{Name: &blank})
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestDeleteCascades(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()
	p, err := svc.Create(ctx, 1, CreateInput{Name: "doomed"})
	require.NoError(t, err)
	_, err = svc.CreateFile(ctx, 1, FileInput{ProjectID: p.ID, Path: "x.md"})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.ChatMessage{ProjectID: p.ID, Role: models.RoleUser, Content: "hi"}).Error)

	require.NoError(t, svc.Delete(ctx, 1, p.ID))

	var files, msgs int64
	require.NoError(t, db.Model(&models.File{}).Where("project_id = ?", p.ID).Count(&files).Error)
	require.NoError(t, db.Model(&models.ChatMessage{}).Where("project_id = ?", p.ID).Count(&msgs).Error)
	require.Zero(t, files)
	require.Zero(t, msgs)
	_, err = svc.Get(ctx, 1, p.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

type fakeGitHub struct {
	mu      sync.Mutex
	entries []github.Entry
	files   map[string]string
	fetched []string
}

func (f *fakeGitHub) ListContents(_ context.Context, owner, repo, _ string) ([]github.Entry, error) {
	if owner != "o" || repo != "r" {
		return nil, github.ErrNotFound
	}
	return f.entries, nil
}

func (f *fakeGitHub) GetFile(_ context.Context, _, _, path string) (*github.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, path)
	return &github.File{Path: path, Content: f.files[path]}, nil
}

func TestImportFromGitHub(t *testing.T) {
	gh := &fakeGitHub{files: map[string]string{}}
	gh.entries = append(gh.entries, github.Entry{Path: "src", Type: "dir"})
	for i := 0; i < 12; i++ {
		p := string(rune('a'+i)) + ".js"
		gh.entries = append(gh.entries, github.Entry{Path: p, Type: "file"})
		gh.files[p] = "// " + p
	}

	svc, _ := newTestService(t, gh)
	ctx := context.Background()
	p, err := svc.Create(ctx, 1, CreateInput{Name: "imported"})
	require.NoError(t, err)
	_, err = svc.CreateFile(ctx, 1, FileInput{ProjectID: p.ID, Path: "a.js", Content: "local"})
	require.NoError(t, err)

	res, err := svc.ImportFromGitHub(ctx, 1, p.ID, "https://github.com/o/r", "")
	require.NoError(t, err)
	require.Equal(t, []string{"src"}, res.Skipped)
	require.Len(t, res.Imported, ImportLimit-1)
	require.Len(t, gh.fetched, ImportLimit-1)

	got, err := svc.Get(ctx, 1, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Files, ImportLimit-1)
	require.Equal(t, "a.js", got.Files[0].Path)
	require.Equal(t, "// a.js", got.Files[0].Content)
	require.NotNil(t, got.RepoURL)

	_, err = svc.ImportFromGitHub(ctx, 1, p.ID, "not a url", "")
	require.ErrorIs(t, err, github.ErrInvalidRepoURL)
	_, err = svc.ImportFromGitHub(ctx, 2, p.ID, "https://github.com/o/r", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLanguageForPath(t *testing.T) {
	require.Equal(t, "css", LanguageForPath("styles/B.CSS"))
	require.Equal(t, "typescript", LanguageForPath("app.tsx"))
	require.Equal(t, "plaintext", LanguageForPath("Makefile"))
}
