package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dpolishuk/coderag/internal/db"
	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/keyedlock"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/dpolishuk/coderag/internal/telemetry"
	"github.com/jcgregorio/slog"
)

// Fetcher populates destDir with a working copy of owner/name and returns the
// commit it checked out.
type Fetcher interface {
	Fetch(ctx context.Context, owner, name, token, destDir string) (string, error)
}

// TokenSource returns the decrypted hosting token of a user.
type TokenSource interface {
	Token(ctx context.Context, userID string) (string, error)
}

// EmbeddingGenerator regenerates the embedding records of a codebase.
type EmbeddingGenerator interface {
	GenerateAll(ctx context.Context, codebaseID string) (int, error)
}

type Options struct {
	WorkDir       string
	AppName       string
	Timeout       time.Duration
	RespectIgnore bool
	Workers       int
	// OriginBaseURL prefixes owner/name to form the codebase origin URL.
	OriginBaseURL string
}

// Pipeline ingests repositories in the background and deletes codebases.
type Pipeline struct {
	store      db.Store
	fetcher    Fetcher
	tokens     TokenSource
	embeddings EmbeddingGenerator
	parser     *JavaParser
	log        slog.Logger
	metrics    *telemetry.Metrics
	opts       Options

	locks keyedlock.Mutex
	jobs  sync.WaitGroup
}

// NewPipeline builds a pipeline. tokens and embeddings may be nil.
func NewPipeline(store db.Store, fetcher Fetcher, tokens TokenSource, embeddings EmbeddingGenerator, log slog.Logger, metrics *telemetry.Metrics, opts Options) *Pipeline {
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if opts.AppName == "" {
		opts.AppName = "coderag"
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.OriginBaseURL == "" {
		opts.OriginBaseURL = "https://github.com"
	}
	return &Pipeline{
		store:      store,
		fetcher:    fetcher,
		tokens:     tokens,
		embeddings: embeddings,
		parser:     NewJavaParser(),
		log:        log,
		metrics:    metrics,
		opts:       opts,
	}
}

// Ingest records a new codebase for owner/name, moves it to Cloning and
// returns it while the fetch and processing run in the background. Ingests of
// the same user and repository run one at a time.
func (p *Pipeline) Ingest(ctx context.Context, userID string, req models.IngestRequest) (*models.Codebase, error) {
	if req.Owner == "" || req.Name == "" {
		return nil, fmt.Errorf("owner and name are required: %w", errs.ErrInvalidInput)
	}

	cb := &models.Codebase{
		UserID:    userID,
		Owner:     req.Owner,
		Name:      req.Name,
		OriginURL: fmt.Sprintf("%s/%s/%s", p.opts.OriginBaseURL, req.Owner, req.Name),
		Status:    models.StatusPending,
	}
	if err := p.store.CreateCodebase(ctx, cb); err != nil {
		return nil, fmt.Errorf("failed to create codebase: %w", err)
	}
	if err := p.transition(ctx, cb, models.StatusCloning); err != nil {
		return nil, err
	}

	jobCtx, cancel := jobContext(ctx, p.opts.Timeout)
	job := *cb
	p.jobs.Add(1)
	go func() {
		defer p.jobs.Done()
		defer cancel()
		p.run(jobCtx, &job)
	}()

	out := *cb
	return &out, nil
}

// Wait blocks until every background ingest has finished.
func (p *Pipeline) Wait() {
	p.jobs.Wait()
}

// jobContext detaches from the caller's cancellation but keeps the earlier of
// the caller's deadline and now+timeout.
func jobContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	deadline, ok := parent.Deadline()
	if timeout > 0 {
		if limit := time.Now().Add(timeout); !ok || limit.Before(deadline) {
			deadline, ok = limit, true
		}
	}
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline)
}

// CodebaseDir is the directory that holds the working copy of a codebase.
func (p *Pipeline) CodebaseDir(codebaseID string) string {
	return filepath.Join(p.opts.WorkDir, p.opts.AppName, codebaseID)
}

func (p *Pipeline) run(ctx context.Context, cb *models.Codebase) {
	unlock := p.locks.Lock(cb.Identity())
	defer unlock()

	// The codebase may have been deleted while this job waited for the lock.
	if _, err := p.store.GetCodebase(ctx, cb.ID); err != nil {
		p.log.Warningf("codebase %s (%s/%s): dropping ingest: %s", cb.ID, cb.Owner, cb.Name, err)
		p.metrics.IngestFinished(models.StatusFailed)
		return
	}

	start := time.Now()
	if err := p.process(ctx, cb); err != nil {
		p.fail(ctx, cb, err)
		p.metrics.IngestFinished(models.StatusFailed)
		return
	}
	p.metrics.IngestFinished(models.StatusCompleted)
	p.log.Infof("codebase %s (%s/%s) completed in %s: %d files", cb.ID, cb.Owner, cb.Name, time.Since(start).Round(time.Millisecond), cb.FileCount)

	if p.embeddings != nil {
		n, err := p.embeddings.GenerateAll(ctx, cb.ID)
		if err != nil {
			p.log.Warningf("codebase %s: embedding generation failed: %s", cb.ID, err)
			return
		}
		p.log.Infof("codebase %s: generated %d embeddings", cb.ID, n)
	}
}

func (p *Pipeline) process(ctx context.Context, cb *models.Codebase) error {
	token := ""
	if p.tokens != nil && cb.UserID != "" {
		t, err := p.tokens.Token(ctx, cb.UserID)
		if err != nil {
			return fmt.Errorf("failed to load access token: %w", err)
		}
		token = t
	}

	destDir := filepath.Join(p.CodebaseDir(cb.ID), cb.Name)
	commit, err := p.fetcher.Fetch(ctx, cb.Owner, cb.Name, token, destDir)
	if err != nil {
		return err
	}
	cb.CommitSHA = commit
	if err := p.transition(ctx, cb, models.StatusProcessing); err != nil {
		return err
	}

	candidates, err := walkSources(destDir, p.opts.RespectIgnore)
	if err != nil {
		return err
	}
	files, err := readSources(ctx, cb.ID, candidates, p.opts.Workers)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no source files found in %s/%s", cb.Owner, cb.Name)
	}
	if err := p.store.SaveFiles(ctx, files); err != nil {
		return fmt.Errorf("failed to save files: %w", err)
	}
	cb.FileCount = len(files)
	cb.Language = primaryLanguage(files)
	if err := p.store.UpdateCodebase(ctx, cb); err != nil {
		return fmt.Errorf("failed to update file count: %w", err)
	}
	p.log.Infof("codebase %s: saved %d files, primary language %s", cb.ID, cb.FileCount, cb.Language)

	if err := p.parseFiles(ctx, files); err != nil {
		return err
	}

	cb.Parsed = true
	return p.transition(ctx, cb, models.StatusCompleted)
}

// parseFiles stores the classes and relationships of every Java file. A file
// that fails to parse is logged and contributes nothing.
func (p *Pipeline) parseFiles(ctx context.Context, files []*models.SourceFile) error {
	var (
		classes []*models.CodeClass
		rels    []*models.CodeRelationship
		parsed  int
	)
	for _, f := range files {
		if f.Language != models.LanguageJava {
			continue
		}
		result, err := p.parser.Parse(ctx, f)
		if err != nil {
			p.log.Warningf("skipping %s: %s", f.Path, err)
			p.metrics.FileParsed(false)
			continue
		}
		p.metrics.FileParsed(true)
		parsed++
		classes = append(classes, result.Classes...)
		rels = append(rels, result.Relationships...)
	}

	if len(classes) > 0 {
		if err := p.store.SaveClasses(ctx, classes); err != nil {
			return fmt.Errorf("failed to save classes: %w", err)
		}
	}
	if len(rels) > 0 {
		if err := p.store.SaveRelationships(ctx, rels); err != nil {
			return fmt.Errorf("failed to save relationships: %w", err)
		}
	}
	p.log.Infof("parsed %d java files: %d classes, %d relationships", parsed, len(classes), len(rels))
	return nil
}

func (p *Pipeline) transition(ctx context.Context, cb *models.Codebase, to models.Status) error {
	if !cb.Status.CanTransition(to) {
		return fmt.Errorf("codebase %s: %s -> %s: %w", cb.ID, cb.Status, to, errs.ErrStateConflict)
	}
	from := cb.Status
	cb.Status = to
	if err := p.store.UpdateCodebase(ctx, cb); err != nil {
		cb.Status = from
		return fmt.Errorf("failed to persist status %s: %w", to, err)
	}
	p.log.Infof("codebase %s: %s -> %s", cb.ID, from, to)
	return nil
}

// fail records err on the codebase. The write uses a fresh deadline so an
// expired job context still gets its status persisted.
func (p *Pipeline) fail(ctx context.Context, cb *models.Codebase, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("ingest timed out: %w", err)
	}
	p.log.Errorf("codebase %s (%s/%s) failed: %s", cb.ID, cb.Owner, cb.Name, err)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	cb.ErrorMsg = err.Error()
	terr := p.transition(writeCtx, cb, models.StatusFailed)
	if terr == nil {
		return
	}
	p.log.Errorf("codebase %s: could not record failure: %s", cb.ID, terr)
	if errors.Is(terr, errs.ErrNotFound) {
		if rerr := os.RemoveAll(p.CodebaseDir(cb.ID)); rerr != nil {
			p.log.Warningf("codebase %s: failed to remove orphaned working copy: %s", cb.ID, rerr)
		}
	}
}

// DeleteCodebase removes the working copy, then every record derived from the
// codebase, then the codebase itself. The first store error stops the cascade.
func (p *Pipeline) DeleteCodebase(ctx context.Context, id string) error {
	cb, err := p.store.GetCodebase(ctx, id)
	if err != nil {
		return err
	}

	unlock := p.locks.Lock(cb.Identity())
	defer unlock()

	if err := os.RemoveAll(p.CodebaseDir(id)); err != nil {
		p.log.Warningf("codebase %s: failed to remove working copy: %s", id, err)
	}

	steps := []struct {
		name string
		del  func() (int, error)
	}{
		{"embeddings", func() (int, error) { return p.store.DeleteEmbeddings(ctx, id, models.KindAll) }},
		{"relationships", func() (int, error) { return p.store.DeleteRelationships(ctx, id) }},
		{"classes", func() (int, error) { return p.store.DeleteClasses(ctx, id) }},
		{"metrics", func() (int, error) { return p.store.DeleteMetrics(ctx, id) }},
		{"files", func() (int, error) { return p.store.DeleteFiles(ctx, id) }},
	}
	for _, step := range steps {
		n, err := step.del()
		if err != nil {
			return fmt.Errorf("failed to delete %s of codebase %s: %w", step.name, id, err)
		}
		p.log.Infof("codebase %s: deleted %d %s", id, n, step.name)
	}

	if err := p.store.DeleteCodebase(ctx, id); err != nil {
		return fmt.Errorf("failed to delete codebase %s: %w", id, err)
	}
	p.log.Infof("codebase %s: deleted", id)
	return nil
}
