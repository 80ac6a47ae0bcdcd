package project

import (
	"context"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/suPer8Hu/ai-studio/internal/common"
	"github.com/suPer8Hu/ai-studio/internal/github"
	"github.com/suPer8Hu/ai-studio/internal/log"
	"github.com/suPer8Hu/ai-studio/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrNotFound    = errors.New("project not found")
	ErrPathExists  = errors.New("file path already exists in project")
	ErrInvalidName = errors.New("project name is required")
	ErrInvalidPath = errors.New("file path is required")
	ErrNoGitHub    = errors.New("github import is not configured")
)

// ImportLimit caps how many directory entries a bulk import reads.
const ImportLimit = 10

const welcomeName = "Welcome"

const welcomeHTML = `<!DOCTYPE html>
<html>
  <head><title>Welcome</title></head>
  <body>
    <h1>Hello from AI Studio</h1>
    <p>Ask the assistant to change this page.</p>
  </body>
</html>
`

// GitHubSource is the slice of the GitHub client imports need.
type GitHubSource interface {
	ListContents(ctx context.Context, owner, repo, path string) ([]github.Entry, error)
	GetFile(ctx context.Context, owner, repo, path string) (*github.File, error)
}

type Service struct {
	repo *Repo
	gh   GitHubSource
}

func NewService(repo *Repo, gh GitHubSource) *Service {
	return &Service{repo: repo, gh: gh}
}

type CreateInput struct {
	Name        string  `json:"name" binding:"required,max=255"`
	Description *string `json:"description"`
	RepoURL     *string `json:"repo_url" binding:"omitempty,max=512"`
}

type UpdateInput struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	RepoURL     *string `json:"repo_url" binding:"omitempty,max=512"`
}

type FileInput struct {
	ProjectID string  `json:"projectId" binding:"required"`
	Path      string  `json:"path" binding:"required,max=512"`
	Content   string  `json:"content"`
	Language  *string `json:"language"`
}

type FilePatch struct {
	Content  *string `json:"content"`
	Language *string `json:"language"`
}

// List returns the user's projects newest first. A user with none gets a
// Welcome project created on the spot.
func (s *Service) List(ctx context.Context, userID uint64) ([]models.Project, error) {
	ps, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list projects")
	}
	if len(ps) > 0 {
		return ps, nil
	}

	p, err := s.createWelcome(ctx, userID)
	if err != nil {
		return nil, err
	}
	return []models.Project{*p}, nil
}

func (s *Service) createWelcome(ctx context.Context, userID uint64) (*models.Project, error) {
	desc := "A starter project. Edit index.html or ask the assistant for changes."
	p, err := s.Create(ctx, userID, CreateInput{Name: welcomeName, Description: &desc})
	if err != nil {
		return nil, errors.Wrap(err, "create welcome project")
	}
	f, err := s.CreateFile(ctx, userID, FileInput{ProjectID: p.ID, Path: "index.html", Content: welcomeHTML})
	if err != nil {
		return nil, errors.Wrap(err, "create welcome file")
	}
	p.Files = []models.File{*f}
	p.Messages = []models.ChatMessage{}
	log.L().Info("created welcome project", zap.Uint64("user_id", userID), zap.String("project_id", p.ID))
	return p, nil
}

func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	p := &models.Project{
		ID:          id,
		UserID:      userID,
		Name:        name,
		Description: in.Description,
		RepoURL:     in.RepoURL,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create project")
	}
	return p, nil
}

// Get returns the project with files ordered by path and messages by time.
func (s *Service) Get(ctx context.Context, userID uint64, id string) (*models.Project, error) {
	return s.repo.GetOwned(ctx, userID, id, true)
}

func (s *Service) Update(ctx context.Context, userID uint64, id string, in UpdateInput) (*models.Project, error) {
	p, err := s.repo.GetOwned(ctx, userID, id, false)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrInvalidName
		}
		updates["name"] = name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.RepoURL != nil {
		updates["repo_url"] = *in.RepoURL
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now()
		if err := s.repo.Update(ctx, p, updates); err != nil {
			return nil, errors.Wrap(err, "update project")
		}
	}
	return s.repo.GetOwned(ctx, userID, id, true)
}

func (s *Service) Delete(ctx context.Context, userID uint64, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

func (s *Service) CreateFile(ctx context.Context, userID uint64, in FileInput) (*models.File, error) {
	if _, err := s.repo.GetOwned(ctx, userID, in.ProjectID, false); err != nil {
		return nil, err
	}
	path := strings.TrimSpace(in.Path)
	if path == "" {
		return nil, ErrInvalidPath
	}

	exists, err := s.repo.PathExists(ctx, in.ProjectID, path)
	if err != nil {
		return nil, errors.Wrap(err, "check file path")
	}
	if exists {
		return nil, errors.Wrapf(ErrPathExists, "%s", path)
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	lang := LanguageForPath(path)
	if in.Language != nil && *in.Language != "" {
		lang = *in.Language
	}
	f := &models.File{
		ID:        id,
		ProjectID: in.ProjectID,
		Path:      path,
		Content:   in.Content,
		Language:  lang,
	}
	if err := s.repo.CreateFile(ctx, f); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Wrapf(ErrPathExists, "%s", path)
		}
		return nil, errors.Wrap(err, "create file")
	}
	return f, nil
}

// ownedFile resolves the file's parent project for the ownership check.
func (s *Service) ownedFile(ctx context.Context, userID uint64, fileID string) (*models.File, error) {
	f, err := s.repo.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetOwned(ctx, userID, f.ProjectID, false); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) UpdateFile(ctx context.Context, userID uint64, fileID string, in FilePatch) (*models.File, error) {
	f, err := s.ownedFile(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Content != nil {
		updates["content"] = *in.Content
	}
	if in.Language != nil {
		updates["language"] = *in.Language
	}
	if len(updates) == 0 {
		return f, nil
	}
	updates["updated_at"] = time.Now()
	if err := s.repo.UpdateFile(ctx, f, updates); err != nil {
		return nil, errors.Wrap(err, "update file")
	}
	return s.repo.GetFile(ctx, fileID)
}

func (s *Service) DeleteFile(ctx context.Context, userID uint64, fileID string) error {
	if _, err := s.ownedFile(ctx, userID, fileID); err != nil {
		return err
	}
	return s.repo.DeleteFile(ctx, fileID)
}

type ImportResult struct {
	Imported []models.File `json:"imported"`
	Skipped  []string      `json:"skipped"`
}

// ImportFromGitHub copies the files among the first ImportLimit entries of a
// repository directory into the project, replacing files at the same path.
func (s *Service) ImportFromGitHub(ctx context.Context, userID uint64, projectID, repoURL, dir string) (*ImportResult, error) {
	if s.gh == nil {
		return nil, ErrNoGitHub
	}
	p, err := s.repo.GetOwned(ctx, userID, projectID, false)
	if err != nil {
		return nil, err
	}
	owner, repo, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	entries, err := s.gh.ListContents(ctx, owner, repo, dir)
	if err != nil {
		return nil, err
	}
	if len(entries) > ImportLimit {
		entries = entries[:ImportLimit]
	}

	res := &ImportResult{Skipped: []string{}}
	fetched := make([]*github.File, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, e := range entries {
		if !e.IsFile() {
			res.Skipped = append(res.Skipped, e.Path)
			continue
		}
		g.Go(func() error {
			f, err := s.gh.GetFile(gctx, owner, repo, e.Path)
			if err != nil {
				return errors.Wrapf(err, "fetch %s", e.Path)
			}
			fetched[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var files []models.File
	for _, f := range fetched {
		if f == nil {
			continue
		}
		id, err := common.NewULID()
		if err != nil {
			return nil, err
		}
		files = append(files, models.File{
			ID:        id,
			ProjectID: p.ID,
			Path:      f.Path,
			Content:   f.Content,
			Language:  LanguageForPath(f.Path),
		})
	}
	if err := s.repo.UpsertFiles(ctx, files); err != nil {
		return nil, errors.Wrap(err, "save imported files")
	}

	if p.RepoURL == nil {
		if err := s.repo.Update(ctx, p, map[string]any{"repo_url": repoURL}); err != nil {
			return nil, errors.Wrap(err, "record repo url")
		}
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	if len(paths) > 0 {
		res.Imported, err = s.repo.FilesByPaths(ctx, p.ID, paths)
		if err != nil {
			return nil, err
		}
	} else {
		res.Imported = []models.File{}
	}

	log.L().Info("imported github files",
		zap.String("project_id", p.ID),
		zap.String("repo", owner+"/"+repo),
		zap.Int("imported", len(res.Imported)),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}
