// Package manager hosts the per-kind catalog managers. Every read goes
// through the permission resolver and every workspace side effect through
// the I/O manager, so the managers stay thin over the database adaptor.
package manager

import (
	"context"

	"github.com/nicholsn/opencga/internal/catalog/audit"
	"github.com/nicholsn/opencga/internal/catalog/authorization"
	"github.com/nicholsn/opencga/internal/catalog/io"
	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/catalog/persistence"
	"github.com/nicholsn/opencga/internal/scheduler/sge"
	"github.com/nicholsn/opencga/internal/storage/metadata"
)

// Scheduler is the slice of the batch scheduler bridge the job manager
// needs. sge.Manager implements it; tests use fakes.
type Scheduler interface {
	Queue(ctx context.Context, tool string, jobID int, outDir, commandLine, queue string) error
	Status(ctx context.Context, tool string, jobID int) (sge.Status, error)
}

// Catalog aggregates the entity managers over one database adaptor.
type Catalog struct {
	db        persistence.CatalogDatabase
	auth      *authorization.Manager
	meta      *metadata.Manager
	io        io.Manager
	scheduler Scheduler
	audit     audit.Sink
	offset    int
}

// Option tweaks a catalog at construction time.
type Option func(*Catalog)

// WithScheduler wires the batch scheduler bridge for job submissions.
func WithScheduler(s Scheduler) Option {
	return func(c *Catalog) { c.scheduler = s }
}

// WithMetadataManager wires the study-configuration manager used by the
// variant loaders.
func WithMetadataManager(m *metadata.Manager) Option {
	return func(c *Catalog) { c.meta = m }
}

// WithAuditSink routes entity status transitions into the audit trail.
func WithAuditSink(sink audit.Sink) Option {
	return func(c *Catalog) { c.audit = sink }
}

// NewCatalog builds the managers. The offset bounds numeric identifier
// resolution: numbers at or below it are treated as names, never ids.
func NewCatalog(db persistence.CatalogDatabase, auth *authorization.Manager, ioManager io.Manager, offset int, opts ...Option) *Catalog {
	c := &Catalog{
		db:     db,
		auth:   auth,
		io:     ioManager,
		audit:  audit.NopSink{},
		offset: offset,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authorization exposes the permission resolver for the ACL routes.
func (c *Catalog) Authorization() *authorization.Manager {
	return c.auth
}

// EntityRef builds the permission-check reference for an entity, loading
// the file path when the kind resolves through the ancestor walk.
func (c *Catalog) EntityRef(ctx context.Context, kind model.Kind, id int) (authorization.EntityRef, error) {
	if kind == model.KindFile {
		file, err := c.db.GetFile(ctx, id)
		if err != nil {
			return authorization.EntityRef{}, err
		}
		return authorization.FileRef(file), nil
	}
	studyID, err := c.entityStudy(ctx, kind, id)
	if err != nil {
		return authorization.EntityRef{}, err
	}
	return authorization.EntityRef{Kind: kind, ID: id, StudyID: studyID}, nil
}

// Close releases the database adaptor.
func (c *Catalog) Close(ctx context.Context) error {
	return c.db.Close(ctx)
}
