package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/go-playground/validator/v10"
	"github.com/suPer8Hu/ai-studio/internal/ai"
	"github.com/suPer8Hu/ai-studio/internal/common"
	"github.com/suPer8Hu/ai-studio/internal/log"
	"github.com/suPer8Hu/ai-studio/internal/metrics"
	"github.com/suPer8Hu/ai-studio/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type State string

const (
	StateValidating     State = "validating"
	StateContextLoading State = "context_loading"
	StateStreaming      State = "streaming"
	StatePersisting     State = "persisting"
	StateDone           State = "done"
	StateAborted        State = "aborted"
	StateFailed         State = "failed"
)

// ClientFactory resolves a model id to a provider handle bound to the
// user's credential. *ai.Factory implements it.
type ClientFactory interface {
	ForModel(ctx context.Context, modelID string, userID uint64) (*ai.Client, error)
}

type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Options struct {
	// ContextWindow is how many prior messages go to the provider.
	ContextWindow int
	// MaxDuration bounds a whole generation; exceeding it aborts.
	MaxDuration    time.Duration
	DefaultModel   string
	PersistTimeout time.Duration
}

type Service struct {
	repo      *Repo
	clients   ClientFactory
	publisher JobPublisher
	opts      Options
	validate  *validator.Validate

	// relays and detached assistant writes
	wg sync.WaitGroup
}

func NewService(repo *Repo, clients ClientFactory, opts Options) *Service {
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 50
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 60 * time.Second
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = "gpt-4o"
	}
	return &Service{repo: repo, clients: clients, opts: opts, validate: newValidator()}
}

func (s *Service) SetPublisher(p JobPublisher) { s.publisher = p }

// Wait blocks until every running relay and detached assistant write is done.
func (s *Service) Wait() { s.wg.Wait() }

type Result struct {
	State State
	// Text is everything the provider produced, persisted only when State is StateDone.
	Text  string
	Model string
	Err   error
}

// Stream is one generation in flight. Callers drain Chunks until it is
// closed, then read Done; a caller that stops reading must cancel the
// context passed to StartStream or call Cancel.
type Stream struct {
	UserMessage models.ChatMessage
	Model       ai.Model

	chunks chan string
	done   chan Result
	cancel context.CancelFunc
}

func (st *Stream) Chunks() <-chan string { return st.chunks }

func (st *Stream) Done() <-chan Result { return st.done }

// Cancel is a user initiated stop. The result is StateAborted unless every
// chunk was already delivered and the turn settled.
func (st *Stream) Cancel() { st.cancel() }

type turn struct {
	log   *zap.Logger
	state State
}

func (s *Service) newTurn(userID uint64, projectID, model string) *turn {
	return &turn{
		log: log.L().With(
			zap.Uint64("user_id", userID),
			zap.String("project_id", projectID),
			zap.String("model", model)),
	}
}

func (t *turn) to(next State) {
	t.log.Debug("chat state", zap.String("from", string(t.state)), zap.String("to", string(next)))
	t.state = next
}

// fail records a terminal failure that happened before streaming.
func (s *Service) fail(t *turn, err error) error {
	t.to(StateFailed)
	metrics.ChatStreams.WithLabelValues(string(StateFailed)).Inc()

	var (
		verr *ValidationError
		cm   *ai.CredentialMissingError
		perr *PersistenceError
	)
	switch {
	case errors.As(err, &verr), errors.Is(err, ErrProjectNotFound), errors.Is(err, ai.ErrModelNotFound),
		errors.Is(err, ErrMessageNotFound), errors.Is(err, ErrNotUserMessage):
		t.log.Info("chat request rejected", zap.Error(err))
	case errors.As(err, &cm):
		t.log.Warn("chat credential missing", zap.String("provider", cm.Provider), zap.Error(err))
	case errors.As(err, &perr):
		t.log.Error("user message not persisted", zap.Error(err))
	default:
		t.log.Error("chat request failed", zap.Error(err))
	}
	return err
}

type turnContext struct {
	project *models.Project
	history []models.ChatMessage
	files   []models.File
}

// loadContext runs after the ownership check; history and files load concurrently.
func (s *Service) loadContext(ctx context.Context, userID uint64, projectID string, window int, beforeOrAt uint64) (*turnContext, error) {
	p, err := s.repo.OwnedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	tc := &turnContext{project: p}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs, err := s.repo.RecentMessages(gctx, p.ID, window, beforeOrAt)
		if err != nil {
			return errors.Wrap(err, "load messages")
		}
		tc.history = msgs
		return nil
	})
	g.Go(func() error {
		files, err := s.repo.Files(gctx, p.ID)
		if err != nil {
			return errors.Wrap(err, "load files")
		}
		tc.files = files
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tc, nil
}

func providerMessages(system string, history []models.ChatMessage) []ai.Message {
	out := make([]ai.Message, 0, len(history)+2)
	out = append(out, ai.Message{Role: ai.RoleSystem, Content: system})
	for _, m := range history {
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func aiRequest(msgs []ai.Message, temperature *float64, maxTokens *int) ai.Request {
	r := ai.Request{Messages: msgs, Temperature: temperature}
	if maxTokens != nil {
		r.MaxTokens = *maxTokens
	}
	return r
}

// StartStream runs a chat turn up to the start of streaming. The user's
// message is stored before the model is resolved, so it survives every
// later failure. Errors returned here happen before any text is produced.
func (s *Service) StartStream(ctx context.Context, userID uint64, req Request) (*Stream, error) {
	if req.Model == "" {
		req.Model = s.opts.DefaultModel
	}
	t := s.newTurn(userID, req.ProjectID, req.Model)

	t.to(StateValidating)
	if err := s.Validate(&req); err != nil {
		return nil, s.fail(t, err)
	}

	t.to(StateContextLoading)
	tc, err := s.loadContext(ctx, userID, req.ProjectID, s.opts.ContextWindow, 0)
	if err != nil {
		return nil, s.fail(t, err)
	}

	userMsg := &models.ChatMessage{ProjectID: tc.project.ID, Role: models.RoleUser, Content: req.Message}
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return nil, s.fail(t, &PersistenceError{Op: "user message", Err: err})
	}

	client, err := s.clients.ForModel(ctx, req.Model, userID)
	if err != nil {
		return nil, s.fail(t, err)
	}

	msgs := providerMessages(BuildSystemPrompt(tc.project, tc.files), tc.history)
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: req.Message})

	streamCtx, cancel := context.WithTimeout(ctx, s.opts.MaxDuration)
	t.to(StateStreaming)
	pChunks, pErrs := client.Stream.StreamChat(streamCtx, aiRequest(msgs, req.Temperature, req.MaxTokens))

	st := &Stream{
		UserMessage: *userMsg,
		Model:       client.Model,
		chunks:      make(chan string),
		done:        make(chan Result, 1),
		cancel:      cancel,
	}
	s.wg.Add(1)
	go s.relay(streamCtx, cancel, t, st, client, tc.project.ID, pChunks, pErrs)
	return st, nil
}

// relay forwards provider chunks as they arrive while accumulating them.
// It always drains the provider so the provider goroutine can exit.
func (s *Service) relay(ctx context.Context, cancel context.CancelFunc, t *turn, st *Stream, client *ai.Client,
	projectID string, pChunks <-chan string, pErrs <-chan error) {
	defer s.wg.Done()
	defer cancel()

	var b strings.Builder
forward:
	for c := range pChunks {
		b.WriteString(c)
		select {
		case st.chunks <- c:
		case <-ctx.Done():
			break forward
		}
	}
	close(st.chunks)
	// the provider may still hold buffered chunks
	for range pChunks {
	}
	err := <-pErrs

	// A stop wins over a provider that already finished cleanly.
	res := Result{Text: b.String(), Model: client.Model.ID}
	switch {
	case ctx.Err() != nil:
		t.to(StateAborted)
		res.State, res.Err = StateAborted, ctx.Err()
		t.log.Info("chat generation aborted",
			zap.NamedError("reason", ctx.Err()),
			zap.Int("discarded_bytes", b.Len()))
	case err != nil:
		t.to(StateFailed)
		res.State, res.Err = StateFailed, err
		kind := "error"
		if ai.IsRateLimited(err) {
			kind = "rate_limited"
		}
		metrics.UpstreamErrors.WithLabelValues(client.Info.Name, kind).Inc()
		t.log.Warn("chat generation failed", zap.String("kind", kind), zap.Error(err))
	default:
		t.to(StatePersisting)
		s.persistAssistant(ctx, t, projectID, res.Text, client.Model.ID)
		t.to(StateDone)
		res.State = StateDone
		t.log.Info("chat generation done", zap.Int("bytes", b.Len()))
	}

	metrics.ChatStreams.WithLabelValues(string(res.State)).Inc()
	st.done <- res
	close(st.done)
}

// persistAssistant writes the reply in a detached task. The stream has
// already been delivered, so a failure is logged and counted, never returned.
func (s *Service) persistAssistant(ctx context.Context, t *turn, projectID, text, modelID string) {
	msg := &models.ChatMessage{
		ProjectID: projectID,
		Role:      models.RoleAssistant,
		Content:   text,
		Model:     &modelID,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PersistTimeout)
		defer cancel()

		if err := s.repo.InsertMessage(pctx, msg); err != nil {
			metrics.AssistantPersistFailures.Inc()
			t.log.Error("assistant message not persisted",
				zap.Int("bytes", len(text)),
				zap.Error(err))
			return
		}
		t.log.Debug("assistant message persisted", zap.Uint64("message_id", msg.ID))
	}()
}

// Regenerate drops the target user message and everything after it, then
// runs a new turn with the same text.
func (s *Service) Regenerate(ctx context.Context, userID uint64, req RegenerateRequest) (*Stream, error) {
	t := s.newTurn(userID, req.ProjectID, req.Model)
	t.to(StateValidating)
	if err := s.Validate(&req); err != nil {
		return nil, s.fail(t, err)
	}

	p, err := s.repo.OwnedProject(ctx, userID, req.ProjectID)
	if err != nil {
		return nil, s.fail(t, err)
	}
	target, err := s.repo.GetMessage(ctx, p.ID, req.MessageID)
	if err != nil {
		return nil, s.fail(t, err)
	}
	if target.Role != models.RoleUser {
		return nil, s.fail(t, ErrNotUserMessage)
	}

	n, err := s.repo.DeleteMessagesFrom(ctx, p.ID, target.ID)
	if err != nil {
		return nil, s.fail(t, errors.Wrap(err, "drop later messages"))
	}
	t.log.Info("regenerating turn", zap.Uint64("message_id", target.ID), zap.Int64("dropped", n))

	return s.StartStream(ctx, userID, Request{
		ProjectID:   p.ID,
		Message:     target.Content,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
}

// ListMessages returns the project's whole history, oldest first.
func (s *Service) ListMessages(ctx context.Context, userID uint64, projectID string) ([]models.ChatMessage, error) {
	p, err := s.repo.OwnedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, p.ID)
}

// EnqueueGeneration stores the user message and a queued job, then publishes
// the job. A repeated idempotency key returns the original job.
func (s *Service) EnqueueGeneration(ctx context.Context, userID uint64, req Request, idempotencyKey string) (*Job, bool, error) {
	if req.Model == "" {
		req.Model = s.opts.DefaultModel
	}
	if err := s.Validate(&req); err != nil {
		return nil, false, err
	}
	p, err := s.repo.OwnedProject(ctx, userID, req.ProjectID)
	if err != nil {
		return nil, false, err
	}

	var key *string
	if idempotencyKey != "" {
		existing, err := s.repo.GetJobByUserAndIdempotencyKey(ctx, userID, idempotencyKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ErrJobNotFound) {
			return nil, false, err
		}
		key = &idempotencyKey
	}
	if s.publisher == nil {
		return nil, false, ErrQueueUnavailable
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	job := &Job{
		ID:             id,
		UserID:         userID,
		ProjectID:      p.ID,
		Model:          req.Model,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		IdempotencyKey: key,
		Status:         JobQueued,
	}
	msg := &models.ChatMessage{ProjectID: p.ID, Role: models.RoleUser, Content: req.Message}

	j, created, err := s.repo.CreateJobWithMessage(ctx, msg, job)
	if err != nil {
		return nil, false, &PersistenceError{Op: "queued turn", Err: err}
	}
	if !created {
		return j, false, nil
	}

	if err := s.publisher.PublishJob(ctx, j.ID); err != nil {
		if markErr := s.repo.MarkJobFailed(ctx, j.ID, "enqueue: "+err.Error()); markErr != nil {
			log.L().Error("mark unpublished job failed", zap.String("job_id", j.ID), zap.Error(markErr))
		}
		return nil, false, errors.Wrap(err, "publish job")
	}
	return j, true, nil
}

func (s *Service) GetJob(ctx context.Context, userID uint64, jobID string) (*Job, error) {
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.UserID != userID {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// GenerateForJob runs a queued job to completion without streaming. A job
// that already succeeded is left alone so redeliveries are harmless.
func (s *Service) GenerateForJob(ctx context.Context, jobID string) error {
	if err := s.repo.UpdateJobStatusRunning(ctx, jobID); err != nil {
		return errors.Wrap(err, "mark job running")
	}
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status == JobSucceeded {
		return nil
	}

	msgID, err := s.generateReply(ctx, j)
	if err != nil {
		if markErr := s.repo.MarkJobFailed(ctx, j.ID, err.Error()); markErr != nil {
			log.L().Error("mark job failed", zap.String("job_id", j.ID), zap.Error(markErr))
		}
		return err
	}
	return s.repo.MarkJobSucceeded(ctx, j.ID, msgID)
}

func (s *Service) generateReply(ctx context.Context, j *Job) (uint64, error) {
	tc, err := s.loadContext(ctx, j.UserID, j.ProjectID, s.opts.ContextWindow+1, j.UserMessageID)
	if err != nil {
		return 0, err
	}
	if n := len(tc.history); n == 0 || tc.history[n-1].ID != j.UserMessageID {
		return 0, errors.Wrapf(ErrMessageNotFound, "user message %d", j.UserMessageID)
	}

	client, err := s.clients.ForModel(ctx, j.Model, j.UserID)
	if err != nil {
		return 0, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.opts.MaxDuration)
	defer cancel()
	msgs := providerMessages(BuildSystemPrompt(tc.project, tc.files), tc.history)
	reply, err := client.Chat(cctx, aiRequest(msgs, j.Temperature, j.MaxTokens))
	if err != nil {
		kind := "error"
		if ai.IsRateLimited(err) {
			kind = "rate_limited"
		}
		metrics.UpstreamErrors.WithLabelValues(client.Info.Name, kind).Inc()
		return 0, err
	}

	model := client.Model.ID
	assistant := &models.ChatMessage{
		ProjectID: tc.project.ID,
		Role:      models.RoleAssistant,
		Content:   reply,
		Model:     &model,
	}
	if err := s.repo.InsertMessage(ctx, assistant); err != nil {
		return 0, &PersistenceError{Op: "assistant message", Err: err}
	}
	return assistant.ID, nil
}
