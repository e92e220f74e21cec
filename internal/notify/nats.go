// Package notify publishes build results to NATS so editors and dashboards
// can react to rebuilds.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/paperx/internal/build"
	"git.home.luguber.info/inful/paperx/internal/logfields"
)

// BuildEvent is the JSON payload published for every build.
type BuildEvent struct {
	BuildID      string    `json:"build_id"`
	Workspace    string    `json:"workspace"`
	Engine       string    `json:"engine"`
	Success      bool      `json:"success"`
	PassesRun    int       `json:"passes_run"`
	DurationMS   int64     `json:"duration_ms"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Message      string    `json:"message,omitempty"`
	LogExcerpt   string    `json:"log_excerpt,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher publishes BuildEvents on a subject.
type NATSPublisher struct {
	conn    Conn
	subject string
}

// Connect dials url and returns a publisher for subject.
func Connect(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("paperx"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS publisher connected", slog.String("url", url), slog.String("subject", subject))
	return NewPublisher(conn, subject), nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject}
}

// Publish sends one event.
func (p *NATSPublisher) Publish(ev BuildEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal build event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish build event: %w", err)
	}
	return nil
}

// BuildFinished implements build.Observer. Publish failures are logged.
func (p *NATSPublisher) BuildFinished(_ context.Context, req build.Request, res build.Result) {
	ev := BuildEvent{
		BuildID:      res.RequestID,
		Workspace:    req.WorkspaceRoot(),
		Engine:       res.Engine,
		Success:      res.Success,
		PassesRun:    res.PassesRun,
		DurationMS:   res.DurationMS(),
		ArtifactPath: res.ArtifactPath,
		ErrorKind:    string(res.ErrorKind),
		Message:      res.Message,
		LogExcerpt:   res.LogExcerpt,
		FinishedAt:   res.FinishedAt,
	}
	if err := p.Publish(ev); err != nil {
		slog.Warn("Failed to publish build event", logfields.BuildID(res.RequestID), logfields.Error(err))
	}
}

// Close closes the underlying connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
