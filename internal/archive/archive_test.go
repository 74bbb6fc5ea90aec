package archive

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/stampcard/internal/database"
	"github.com/dukerupert/stampcard/internal/model"
	"github.com/dukerupert/stampcard/internal/store"
)

type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

var testConfig = Config{
	S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret", Prefix: "event"},
	Passphrase: "pass phrase",
}

func setupManager(t *testing.T) (*Manager, *mockS3Client, *store.ArchiveStore, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	as := store.NewArchiveStore(db)
	m := NewManager(testConfig, db, as, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mock := newMockS3()
	m.client = mock
	return m, mock, as, db
}

func TestManagerDisabledWithoutConfig(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if m.Status(context.Background()).State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status(context.Background()).State, StateDisabled)
	}
	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("RunNow err = %v, want ErrDisabled", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Errorf("Start on disabled manager: %v", err)
	}
	m.Stop()

	noPass := NewManager(Config{S3: testConfig.S3}, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if noPass.Status(context.Background()).State != StateDisabled {
		t.Error("manager without passphrase should be disabled")
	}
}

func TestRunNowUploadsSealedSnapshot(t *testing.T) {
	m, mock, as, db := setupManager(t)
	ctx := context.Background()

	if _, err := store.NewParticipantStore(db).Create(ctx, "E100", "Tan"); err != nil {
		t.Fatalf("create participant: %v", err)
	}

	a, err := m.RunNow(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if a.Status != model.ArchiveStatusCompleted {
		t.Errorf("status = %q, want completed", a.Status)
	}
	if a.SizeBytes == 0 {
		t.Error("size should be recorded")
	}
	if filepath.Dir(a.S3Key) != "event" {
		t.Errorf("key = %q, want event/ prefix", a.S3Key)
	}

	sealed, ok := mock.objects[a.S3Key]
	if !ok {
		t.Fatalf("object %q not uploaded", a.S3Key)
	}
	plain, err := Open(sealed, testConfig.Passphrase)
	if err != nil {
		t.Fatalf("open sealed snapshot: %v", err)
	}

	path := filepath.Join(t.TempDir(), "restored.db")
	if err := os.WriteFile(path, plain, 0600); err != nil {
		t.Fatalf("write restored: %v", err)
	}
	restored, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()
	var n int
	if err := restored.QueryRow(`SELECT COUNT(*) FROM participants`).Scan(&n); err != nil {
		t.Fatalf("query restored: %v", err)
	}
	if n != 1 {
		t.Errorf("restored participants = %d, want 1", n)
	}

	st := m.Status(ctx)
	if st.State != StateIdle || st.LastArchive == nil {
		t.Errorf("status = %+v, want idle with last archive", st)
	}

	list, err := as.List(ctx, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}
}

func TestRunNowRecordsUploadFailure(t *testing.T) {
	m, mock, as, _ := setupManager(t)
	ctx := context.Background()
	mock.putErr = errors.New("bucket gone")

	if _, err := m.RunNow(ctx); err == nil {
		t.Fatal("expected upload error")
	}
	if st := m.Status(ctx); st.State != StateError || st.Error == "" {
		t.Errorf("status = %+v, want error state", st)
	}

	list, _ := as.List(ctx, 10)
	if len(list) != 1 || list[0].Status != model.ArchiveStatusFailed {
		t.Errorf("archives = %+v, want one failed", list)
	}
}

func TestDownload(t *testing.T) {
	m, _, _, _ := setupManager(t)
	ctx := context.Background()

	a, err := m.RunNow(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	body, rec, err := m.Download(ctx, a.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if int64(len(data)) != rec.SizeBytes {
		t.Errorf("downloaded %d bytes, want %d", len(data), rec.SizeBytes)
	}

	if _, _, err := m.Download(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
}
