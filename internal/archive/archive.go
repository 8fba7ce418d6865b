package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/splitcart/internal/metrics"
	"github.com/dukerupert/splitcart/internal/model"
)

// ErrDisabled is returned when no S3 bucket is configured.
var ErrDisabled = errors.New("archive export not configured")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type State string

const (
	StateIdle     State = "idle"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status is reported on the health endpoint.
type Status struct {
	State      State      `json:"state"`
	LastExport *time.Time `json:"last_export,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Exporter copies resolved receipts to S3-compatible storage. Export
// failures never affect the stored history entry.
type Exporter struct {
	mu     sync.RWMutex
	cfg    S3Config
	client s3Client
	status Status

	logger  *slog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func NewExporter(cfg S3Config, logger *slog.Logger, m *metrics.Metrics) *Exporter {
	e := &Exporter{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		status:  Status{State: StateDisabled},
	}
	if cfg.complete() {
		e.client = newS3Client(cfg)
		e.status.State = StateIdle
	}
	return e
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

// Enabled reports whether a bucket is configured.
func (e *Exporter) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.client != nil
}

func (e *Exporter) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Key returns the object key for an entry.
func Key(entry *model.ReceiptHistoryEntry) string {
	return fmt.Sprintf("receipts/%d/%d.json", entry.ListID, entry.ID)
}

// Export uploads the entry as JSON.
func (e *Exporter) Export(ctx context.Context, entry *model.ReceiptHistoryEntry) error {
	e.mu.RLock()
	client, bucket := e.client, e.cfg.Bucket
	e.mu.RUnlock()

	if client == nil {
		return ErrDisabled
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(Key(entry)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		e.setError(err)
		e.metrics.Export(false)
		return fmt.Errorf("upload to s3: %w", err)
	}

	now := time.Now().UTC()
	e.mu.Lock()
	e.status = Status{State: StateIdle, LastExport: &now}
	e.mu.Unlock()
	e.metrics.Export(true)
	return nil
}

// ExportAsync uploads in the background and logs the outcome. It is a no-op
// when the exporter is disabled.
func (e *Exporter) ExportAsync(entry *model.ReceiptHistoryEntry) {
	if !e.Enabled() {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := e.Export(ctx, entry); err != nil {
			e.logger.Error("receipt export failed", "history_id", entry.ID, "list_id", entry.ListID, "error", err)
			return
		}
		e.logger.Info("receipt exported", "history_id", entry.ID, "key", Key(entry))
	}()
}

// Wait blocks until background exports finish.
func (e *Exporter) Wait() {
	e.wg.Wait()
}

// Download streams an exported receipt back from storage.
func (e *Exporter) Download(ctx context.Context, entry *model.ReceiptHistoryEntry) (io.ReadCloser, error) {
	e.mu.RLock()
	client, bucket := e.client, e.cfg.Bucket
	e.mu.RUnlock()

	if client == nil {
		return nil, ErrDisabled
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(Key(entry)),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	return result.Body, nil
}

// Remove deletes an exported receipt. Disabled exporters return nil.
func (e *Exporter) Remove(ctx context.Context, entry *model.ReceiptHistoryEntry) error {
	e.mu.RLock()
	client, bucket := e.client, e.cfg.Bucket
	e.mu.RUnlock()

	if client == nil {
		return nil
	}

	if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(Key(entry)),
	}); err != nil {
		return fmt.Errorf("delete from s3: %w", err)
	}
	return nil
}

func (e *Exporter) setError(err error) {
	e.mu.Lock()
	e.status.State = StateError
	e.status.Error = err.Error()
	e.mu.Unlock()
}
