package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/target/mmk-export/internal/core"
	"github.com/target/mmk-export/internal/domain/model"
	"github.com/target/mmk-export/internal/ports"
	"github.com/target/mmk-export/internal/util"
)

const (
	emailClaimPrefix = "mmk-export:email:"
	// DefaultEmailClaimTTL bounds how long a download id stays claimed.
	DefaultEmailClaimTTL = 24 * time.Hour
)

var (
	// ErrJobIDPending is retried while no download id is available yet.
	ErrJobIDPending = errors.New("download id not yet available")
	// ErrEmailAlreadyRequested is returned when another caller already claimed the download.
	ErrEmailAlreadyRequested = errors.New("completion email already requested")
)

// DefaultEmailBackoff waits for a download id for roughly a minute.
var DefaultEmailBackoff = util.Backoff{
	Initial:  250 * time.Millisecond,
	Max:      2 * time.Second,
	MaxTries: 40,
}

// JobIDSource reports the download id once the launcher produced one.
type JobIDSource func() (string, bool)

// PollerJobSource reads the id of the job a poller tracks.
func PollerJobSource(p interface{ Job() (model.ExportJob, bool) }) JobIDSource {
	return func() (string, bool) {
		job, ok := p.Job()
		return job.JobID, ok && job.JobID != ""
	}
}

// StaticJobSource always yields id.
func StaticJobSource(id string) JobIDSource {
	return func() (string, bool) { return id, id != "" }
}

// CompletionEmailConfig holds optional settings.
type CompletionEmailConfig struct {
	// Backoff defaults to DefaultEmailBackoff.
	Backoff util.Backoff
	// ClaimTTL defaults to DefaultEmailClaimTTL.
	ClaimTTL time.Duration
	Logger   *slog.Logger
}

// CompletionEmailOptions groups dependencies for CompletionEmailService.
type CompletionEmailOptions struct {
	Requester ports.EmailRequester  // Required
	Cache     core.CacheRepository // Optional: dedupes requests across processes
	Config    CompletionEmailConfig
}

// CompletionEmailService registers a completion email once a download id exists.
type CompletionEmailService struct {
	requester ports.EmailRequester
	cache     core.CacheRepository
	backoff   util.Backoff
	claimTTL  time.Duration
	logger    *slog.Logger
}

// NewCompletionEmailService panics if the requester is nil.
func NewCompletionEmailService(opts CompletionEmailOptions) *CompletionEmailService {
	if opts.Requester == nil {
		panic("Requester is required for CompletionEmailService")
	}
	cfg := opts.Config
	if cfg.Backoff == (util.Backoff{}) {
		cfg.Backoff = DefaultEmailBackoff
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = DefaultEmailClaimTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CompletionEmailService{
		requester: opts.Requester,
		cache:     opts.Cache,
		backoff:   cfg.Backoff,
		claimTTL:  cfg.ClaimTTL,
		logger:    logger.With("component", "completion_email"),
	}
}

// Request waits for src to yield a download id, then registers the email once.
// It returns the download id it acted on.
func (s *CompletionEmailService) Request(ctx context.Context, src JobIDSource) (string, error) {
	downloadID, err := backoff.Retry(ctx, func() (string, error) {
		id, ok := src()
		if !ok {
			return "", ErrJobIDPending
		}
		return strings.TrimSpace(id), nil
	}, s.backoff.Options()...)
	if err != nil {
		return "", fmt.Errorf("wait for download id: %w", err)
	}

	claimed, err := s.claim(ctx, downloadID)
	if err != nil {
		return downloadID, err
	}
	if !claimed {
		s.logger.InfoContext(ctx, "completion email already requested", "download_id", downloadID)
		return downloadID, ErrEmailAlreadyRequested
	}

	if err := s.requester.RequestCompletionEmail(ctx, downloadID); err != nil {
		s.release(ctx, downloadID)
		return downloadID, fmt.Errorf("request completion email: %w", err)
	}
	s.logger.InfoContext(ctx, "completion email requested", "download_id", downloadID)
	return downloadID, nil
}

func (s *CompletionEmailService) claim(ctx context.Context, downloadID string) (bool, error) {
	if s.cache == nil {
		return true, nil
	}
	ok, err := s.cache.SetIfNotExists(ctx, emailClaimPrefix+downloadID, []byte(time.Now().UTC().Format(time.RFC3339)), s.claimTTL)
	if err != nil {
		return false, fmt.Errorf("claim completion email: %w", err)
	}
	return ok, nil
}

// release frees the claim so a later attempt can retry.
func (s *CompletionEmailService) release(ctx context.Context, downloadID string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Delete(context.WithoutCancel(ctx), emailClaimPrefix+downloadID); err != nil {
		s.logger.WarnContext(ctx, "release completion email claim failed", "download_id", downloadID, "error", err)
	}
}
