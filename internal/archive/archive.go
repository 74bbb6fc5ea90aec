// Package archive snapshots the database, encrypts the snapshot and pushes
// it to S3-compatible storage, optionally on a schedule.
package archive

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-co-op/gocron/v2"

	"github.com/dukerupert/stampcard/internal/metrics"
	"github.com/dukerupert/stampcard/internal/model"
)

var ErrDisabled = errors.New("archive not configured")

type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type archiveStore interface {
	Create(ctx context.Context, filename, s3Key string) (*model.Archive, error)
	GetByID(ctx context.Context, id string) (*model.Archive, error)
	List(ctx context.Context, limit int) ([]model.Archive, error)
	MarkUploading(ctx context.Context, id string, sizeBytes int64) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	LastCompleted(ctx context.Context) (*model.Archive, error)
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	S3         S3Config
	Passphrase string
	// Interval between scheduled runs. Zero disables the schedule but keeps
	// on-demand runs available.
	Interval time.Duration
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State       State      `json:"state"`
	LastArchive *time.Time `json:"last_archive,omitempty"`
	Error       string     `json:"error,omitempty"`
	Scheduled   bool       `json:"scheduled"`
}

type Manager struct {
	mu     sync.Mutex
	cfg    Config
	status Status
	// run serializes snapshots.
	run sync.Mutex

	db      *sql.DB
	store   archiveStore
	client  s3Client
	sched   gocron.Scheduler
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewManager(cfg Config, db *sql.DB, store archiveStore, m *metrics.Metrics, logger *slog.Logger) *Manager {
	mgr := &Manager{
		cfg:     cfg,
		db:      db,
		store:   store,
		metrics: m,
		logger:  logger,
		status:  Status{State: StateDisabled},
	}
	if cfg.S3.complete() && cfg.Passphrase != "" {
		mgr.client = newS3Client(cfg.S3)
		mgr.status.State = StateIdle
	}
	return mgr
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start schedules periodic archives. It is a no-op when archiving is
// disabled or no interval is configured.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.State == StateDisabled || m.cfg.Interval <= 0 || m.sched != nil {
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create archive scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(m.cfg.Interval),
		gocron.NewTask(func(ctx context.Context) {
			if _, err := m.RunNow(ctx); err != nil {
				m.logger.Error("scheduled archive failed", "error", err)
			}
		}),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule archive: %w", err)
	}
	sched.Start()
	m.sched = sched
	m.status.Scheduled = true
	m.logger.Info("archive schedule started", "interval", m.cfg.Interval)
	return nil
}

// Stop waits for a running archive to finish. Safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	sched := m.sched
	m.sched = nil
	m.status.Scheduled = false
	m.mu.Unlock()

	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			m.logger.Warn("archive scheduler shutdown", "error", err)
		}
	}
}

// Status reports the manager state. LastArchive falls back to the newest
// completed row so it survives restarts.
func (m *Manager) Status(ctx context.Context) Status {
	m.mu.Lock()
	st := m.status
	m.mu.Unlock()

	if st.LastArchive == nil && m.store != nil {
		last, err := m.store.LastCompleted(ctx)
		if err != nil {
			m.logger.Warn("read last archive", "error", err)
		} else if last != nil {
			st.LastArchive = last.CompletedAt
		}
	}
	return st
}

func (m *Manager) setStatus(state State, errMsg string, last *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.State = state
	m.status.Error = errMsg
	if last != nil {
		m.status.LastArchive = last
	}
}

func (m *Manager) List(ctx context.Context, limit int) ([]model.Archive, error) {
	return m.store.List(ctx, limit)
}

// RunNow takes a consistent snapshot with VACUUM INTO, seals it and uploads
// it. The archive row tracks every step so failures are visible to admins.
func (m *Manager) RunNow(ctx context.Context) (*model.Archive, error) {
	m.mu.Lock()
	client := m.client
	cfg := m.cfg
	m.mu.Unlock()
	if client == nil {
		return nil, ErrDisabled
	}

	m.run.Lock()
	defer m.run.Unlock()

	m.setStatus(StateRunning, "", nil)

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	filename := fmt.Sprintf("stampcard-%s.db.enc", timestamp)
	key := filename
	if cfg.S3.Prefix != "" {
		key = cfg.S3.Prefix + "/" + filename
	}

	record, err := m.store.Create(ctx, filename, key)
	if err != nil {
		m.setStatus(StateError, err.Error(), nil)
		return nil, fmt.Errorf("create archive record: %w", err)
	}

	size, err := m.snapshotAndUpload(ctx, client, cfg, record.ID, key)
	if err != nil {
		if markErr := m.store.MarkFailed(ctx, record.ID, err.Error()); markErr != nil {
			m.logger.Warn("mark archive failed", "id", record.ID, "error", markErr)
		}
		m.setStatus(StateError, err.Error(), nil)
		m.metrics.ObserveArchive(string(model.ArchiveStatusFailed))
		return nil, err
	}

	if err := m.store.MarkCompleted(ctx, record.ID); err != nil {
		m.setStatus(StateError, err.Error(), nil)
		return nil, err
	}
	now := time.Now().UTC()
	m.setStatus(StateIdle, "", &now)
	m.metrics.ObserveArchive(string(model.ArchiveStatusCompleted))
	m.logger.Info("archive uploaded", "id", record.ID, "key", key, "bytes", size)
	return m.store.GetByID(ctx, record.ID)
}

func (m *Manager) snapshotAndUpload(ctx context.Context, client s3Client, cfg Config, id, key string) (int64, error) {
	dir, err := os.MkdirTemp("", "stampcard-archive-")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return 0, fmt.Errorf("snapshot database: %w", err)
	}
	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}

	sealed, err := Seal(plaintext, cfg.Passphrase)
	if err != nil {
		return 0, fmt.Errorf("encrypt snapshot: %w", err)
	}
	if err := m.store.MarkUploading(ctx, id, int64(len(sealed))); err != nil {
		return 0, err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return 0, fmt.Errorf("upload to s3: %w", err)
	}
	return int64(len(sealed)), nil
}

// Download streams the sealed snapshot for an archive.
func (m *Manager) Download(ctx context.Context, id string) (io.ReadCloser, *model.Archive, error) {
	m.mu.Lock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.Unlock()
	if client == nil {
		return nil, nil, ErrDisabled
	}

	record, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("download from s3: %w", err)
	}
	return out.Body, record, nil
}
