// Package ingest walks photo folders into the catalog exactly once each,
// deduplicating on normalized content and tolerating interruption through
// checkpoints.
package ingest

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pwalhed/photodex/internal/catalog"
	"github.com/pwalhed/photodex/internal/config"
	"github.com/pwalhed/photodex/internal/db"
	"github.com/pwalhed/photodex/internal/errors"
	"github.com/pwalhed/photodex/internal/imaging"
	"github.com/pwalhed/photodex/internal/jobs"
)

// JobTypeIngest is the job type under which ingestion runs are enqueued.
const JobTypeIngest = "ingest"

// Options control one ingestion run.
type Options struct {
	Recursive bool `json:"recursive"`
}

// Request describes an ingestion invocation.
type Request struct {
	Folders    []string    `json:"folders"`
	Options    Options     `json:"options"`
	Checkpoint *Checkpoint `json:"checkpoint,omitempty"`

	// OnProgress, when set, receives a snapshot after every file. It is a
	// best-effort notification: a panicking listener is logged and ignored,
	// it never aborts the run.
	OnProgress func(Progress) `json:"-"`
}

// FileError records one non-fatal per-file failure.
type FileError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Progress is the structured result every run reports, incrementally and
// as its final value.
type Progress struct {
	SessionID       int64       `json:"session_id"`
	Processed       int         `json:"processed"`
	SkippedExisting int         `json:"skipped_existing"`
	Total           int         `json:"total"`
	Errors          []FileError `json:"errors"`
	Cancelled       bool        `json:"cancelled"`
	Checkpoint      *Checkpoint `json:"checkpoint,omitempty"`
}

// Orchestrator runs the per-file dedup/normalize/extract/persist sequence
// over requested folders. The store handle is injected; there is no
// ambient connection state.
type Orchestrator struct {
	database   *sql.DB
	root       string
	normalizer *imaging.Normalizer
	extensions map[string]bool
	logger     *zap.Logger
}

// New builds an Orchestrator rooted at the catalog root. A nil logger
// disables logging.
func New(database *sql.DB, root string, cfg *config.Config, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	abs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, errors.NewInvalidRequest("invalid catalog root: " + err.Error())
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}

	extensions := defaultExtensions
	if len(cfg.ImageExtensions) > 0 {
		extensions = make(map[string]bool, len(cfg.ImageExtensions))
		for _, ext := range cfg.ImageExtensions {
			extensions[strings.ToLower(ext)] = true
		}
	}

	return &Orchestrator{
		database:   database,
		root:       abs,
		normalizer: imaging.NewNormalizer(cfg.ThumbnailMaxEdge),
		extensions: extensions,
		logger:     logger,
	}, nil
}

// Root returns the catalog root all requested folders must lie within.
func (o *Orchestrator) Root() string {
	return o.root
}

// StartSession runs one ingestion invocation. Scope violations and
// checkpoint mismatches fail before any side effect; per-file problems are
// collected and skipped; store-level failures abort the run. Cancellation
// via ctx is cooperative, checked at file boundaries, and is a normal
// outcome, not an error: prior inserts are retained and the returned
// checkpoint resumes after the last handled file.
func (o *Orchestrator) StartSession(ctx context.Context, req Request) (*Progress, error) {
	folders, err := resolveFolders(o.root, req.Folders)
	if err != nil {
		return nil, err
	}

	files := enumerate(folders, req.Options.Recursive, o.extensions)
	digest := folderDigest(folders)

	start := 0
	if req.Checkpoint != nil {
		if err := req.Checkpoint.validate(digest, req.Options.Recursive, len(files)); err != nil {
			return nil, err
		}
		start = req.Checkpoint.Ordinal
	}

	sessionID, err := db.CreateSession(o.database, len(folders))
	if err != nil {
		return nil, err
	}

	logger := o.logger.With(zap.Int64("session_id", sessionID))
	logger.Info("ingestion started",
		zap.Int("folders", len(folders)),
		zap.Int("total", len(files)),
		zap.Int("resume_at", start),
		zap.Bool("recursive", req.Options.Recursive))

	progress := &Progress{
		SessionID: sessionID,
		Total:     len(files),
	}

	for i := start; i < len(files); i++ {
		if ctx.Err() != nil {
			// Checkpoint points at the first not-yet-processed file
			progress.Cancelled = true
			progress.Checkpoint = &Checkpoint{Ordinal: i, FolderDigest: digest, Recursive: req.Options.Recursive}
			o.notify(req.OnProgress, *progress)
			logger.Info("ingestion cancelled",
				zap.Int("processed", progress.Processed),
				zap.Int("ordinal", i))
			return progress, nil
		}

		path := files[i]
		if err := o.ingestOne(sessionID, path, progress); err != nil {
			// Store-level failure: a correctness assumption was violated,
			// abort instead of swallowing it.
			logger.Error("ingestion aborted", zap.String("path", path), zap.Error(err))
			return nil, err
		}

		progress.Checkpoint = &Checkpoint{Ordinal: i + 1, FolderDigest: digest, Recursive: req.Options.Recursive}
		o.notify(req.OnProgress, *progress)
	}

	o.notify(req.OnProgress, *progress)
	logger.Info("ingestion finished",
		zap.Int("processed", progress.Processed),
		zap.Int("skipped_existing", progress.SkippedExisting),
		zap.Int("errors", len(progress.Errors)))
	return progress, nil
}

// ingestOne routes a single file through normalize → fingerprint → dedup →
// extract → persist. Decode failures are recorded on progress and skipped;
// only store-level errors propagate.
func (o *Orchestrator) ingestOne(sessionID int64, path string, progress *Progress) error {
	normalized, err := o.normalizer.Load(path)
	if err != nil {
		o.recordFileError(progress, path, err)
		return nil
	}

	contentHash, perceptualHash, err := imaging.Fingerprints(normalized.Image)
	if err != nil {
		o.recordFileError(progress, path, err)
		return nil
	}

	exists, err := db.ContentHashExists(o.database, contentHash)
	if err != nil {
		return err
	}
	if exists {
		progress.SkippedExisting++
		return nil
	}

	thumbnail, err := o.normalizer.Thumbnail(normalized.Image)
	if err != nil {
		o.recordFileError(progress, path, err)
		return nil
	}

	relPath, err := filepath.Rel(o.root, path)
	if err != nil {
		// Enumerated paths are always under the root
		return errors.NewInternal(err)
	}
	relPath = filepath.ToSlash(relPath)

	img := &catalog.Image{
		SessionID:          sessionID,
		RelativePath:       relPath,
		SubFolder:          subFolderOf(relPath),
		Filename:           filepath.Base(path),
		ContentHash:        contentHash,
		PerceptualHash:     perceptualHash,
		Width:              normalized.Width,
		Height:             normalized.Height,
		OrientationApplied: normalized.OrientationApplied,
		Thumbnail:          thumbnail,
		SizeBytes:          normalized.SizeBytes,
		ProcessedAt:        time.Now().Unix(),
	}

	// One transaction per file: the image row and its metadata land
	// together or not at all.
	if _, err := db.InsertImageWithMetadata(o.database, img, imaging.ExtractMetadata(path)); err != nil {
		return err
	}
	if err := db.IncrementSessionImageCount(o.database, sessionID, 1); err != nil {
		return err
	}

	progress.Processed++
	return nil
}

func (o *Orchestrator) recordFileError(progress *Progress, path string, err error) {
	o.logger.Warn("file skipped", zap.String("path", path), zap.Error(err))
	progress.Errors = append(progress.Errors, FileError{Path: path, Message: err.Error()})
}

// notify delivers a progress snapshot to the listener. Best-effort by
// contract: listener panics are logged and never abort the run.
func (o *Orchestrator) notify(listener func(Progress), p Progress) {
	if listener == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("progress listener panicked", zap.Any("panic", r))
		}
	}()
	listener(p)
}

// JobBody adapts the orchestrator to the job manager. The payload must be
// a Request; a checkpoint carried by the job record takes precedence over
// one embedded in the payload, so resumed jobs pick up where the previous
// record left off.
func JobBody(o *Orchestrator) jobs.Body {
	return func(ctx context.Context, report jobs.ReportFunc, checkpoint any, payload any) (any, error) {
		req, ok := payload.(Request)
		if !ok {
			return nil, errors.NewInvalidRequest("ingest job payload must be an ingest.Request")
		}
		if cp, ok := checkpoint.(*Checkpoint); ok && cp != nil {
			req.Checkpoint = cp
		}

		listener := req.OnProgress
		req.OnProgress = func(p Progress) {
			report(p, p.Checkpoint)
			if listener != nil {
				listener(p)
			}
		}

		return o.StartSession(ctx, req)
	}
}
