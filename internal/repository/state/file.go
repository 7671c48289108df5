package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/pricebot-bootstrap/internal/config"
	domain "github.com/oshokin/pricebot-bootstrap/internal/domain/bootstrap"
)

// Repository defines persistence operations for the run record.
type Repository interface {
	Load(ctx context.Context) (*domain.Record, error)
	Save(ctx context.Context, record *domain.Record) error
}

// FileRepository stores the run record as a JSON document on disk.
// The document is a protobuf Struct rendered with protojson.
type FileRepository struct {
	// path is the filesystem location of the JSON record.
	path string
	// mu protects concurrent access to the record file.
	mu sync.Mutex
}

// Record field names in the JSON document.
const (
	fieldRunID      = "run_id"
	fieldHostname   = "hostname"
	fieldUsername   = "username"
	fieldStartedAt  = "started_at"
	fieldFinishedAt = "finished_at"
	fieldSteps      = "steps"
	fieldOutcome    = "outcome"
	fieldScriptPath = "script_path"
	fieldSourceURL  = "source_url"
)

var (
	// ErrNotFound is returned when no run has been recorded yet.
	ErrNotFound = errors.New("run record not found")

	errRecordIsNotSet = errors.New("run record is not set")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the file the repository works with.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read run record: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode run record: %w", err)
	}

	return fromStruct(&document)
}

// Save writes the record to disk, creating the parent directory if needed.
func (r *FileRepository) Save(_ context.Context, record *domain.Record) error {
	if record == nil {
		return errRecordIsNotSet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := toStruct(record)
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create record directory: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write run record: %w", err)
	}

	return nil
}

// toStruct converts the domain record into a protobuf Struct.
func toStruct(record *domain.Record) (*structpb.Struct, error) {
	steps := make([]any, 0, len(record.Steps))
	for _, step := range record.Steps {
		steps = append(steps, string(step))
	}

	fields := map[string]any{
		fieldRunID:      record.RunID,
		fieldStartedAt:  formatTime(record.StartedAt),
		fieldFinishedAt: formatTime(record.FinishedAt),
		fieldSteps:      steps,
		fieldOutcome:    string(record.Outcome),
		fieldScriptPath: record.ScriptPath,
		fieldSourceURL:  record.SourceURL,
	}

	if record.Actor != nil {
		fields[fieldHostname] = record.Actor.Hostname
		fields[fieldUsername] = record.Actor.Username
	}

	return structpb.NewStruct(fields)
}

// fromStruct converts a protobuf Struct back into the domain record.
func fromStruct(document *structpb.Struct) (*domain.Record, error) {
	fields := document.GetFields()

	startedAt, err := parseTime(fields[fieldStartedAt].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fieldStartedAt, err)
	}

	finishedAt, err := parseTime(fields[fieldFinishedAt].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fieldFinishedAt, err)
	}

	record := &domain.Record{
		RunID:      fields[fieldRunID].GetStringValue(),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Outcome:    domain.Outcome(fields[fieldOutcome].GetStringValue()),
		ScriptPath: fields[fieldScriptPath].GetStringValue(),
		SourceURL:  fields[fieldSourceURL].GetStringValue(),
	}

	for _, value := range fields[fieldSteps].GetListValue().GetValues() {
		record.Steps = append(record.Steps, domain.Step(value.GetStringValue()))
	}

	_, hasHost := fields[fieldHostname]
	_, hasUser := fields[fieldUsername]

	if hasHost || hasUser {
		record.Actor = &domain.Actor{
			Hostname: fields[fieldHostname].GetStringValue(),
			Username: fields[fieldUsername].GetStringValue(),
		}
	}

	return record, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339Nano, s)
}
