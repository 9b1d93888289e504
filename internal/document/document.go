// Package document stores uploaded files (delivery photos, receipts) on
// local disk and hands back stable id/url references. Usage records carry
// the id, never the bytes.
package document

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/config"
	"github.com/sitelane/materialflow/internal/identity"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Document is the stored-file metadata row. ID is a ULID so filenames sort
// by upload time on disk.
type Document struct {
	ID          string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	FileName    string    `gorm:"type:text;not null" json:"file_name"`
	ContentType string    `gorm:"type:text" json:"content_type"`
	SizeBytes   int64     `gorm:"not null" json:"size_bytes"`
	URL         string    `gorm:"type:text;not null" json:"url"`
	UploadedBy  string    `gorm:"type:text" json:"uploaded_by"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Document) TableName() string { return "documents" }

type Service interface {
	Upload(ctx context.Context, fileName, contentType string, content io.Reader) (Document, error)
	GetByID(ctx context.Context, id string) (Document, error)
	Open(ctx context.Context, id string) (io.ReadCloser, Document, error)
}

var (
	ErrInvalidFileName = errors.New("invalid_file_name")
	ErrNotFound        = errors.New("document_not_found")
)

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
}

type service struct {
	dir     string
	baseURL string
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
}

func NewService(p Params) (Service, error) {
	dir := strings.TrimSpace(p.Config.DocumentDir)
	if dir == "" {
		dir = "data/documents"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &service{
		dir:     dir,
		baseURL: strings.TrimRight(p.Config.DocumentBaseURL, "/"),
		db:      p.DB,
		log:     p.Log.Named("document.service"),
		clock:   p.Clock,
	}, nil
}

func (s *service) Upload(ctx context.Context, fileName, contentType string, content io.Reader) (Document, error) {
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		return Document{}, ErrInvalidFileName
	}

	id := ulid.Make().String()
	path := s.path(id)

	file, err := os.Create(path)
	if err != nil {
		return Document{}, err
	}
	size, err := io.Copy(file, content)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return Document{}, err
	}

	actor, _ := identity.ActorFromContext(ctx)
	doc := Document{
		ID:          id,
		FileName:    fileName,
		ContentType: strings.TrimSpace(contentType),
		SizeBytes:   size,
		URL:         s.baseURL + "/" + id,
		UploadedBy:  actor.Name,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		_ = os.Remove(path)
		return Document{}, err
	}

	s.log.Debug("document stored",
		zap.String("document_id", id),
		zap.String("file_name", fileName),
		zap.Int64("size_bytes", size),
	)
	return doc, nil
}

func (s *service) GetByID(ctx context.Context, id string) (Document, error) {
	id = strings.TrimSpace(id)
	if _, err := ulid.Parse(id); err != nil {
		return Document{}, ErrNotFound
	}

	var doc Document
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func (s *service) Open(ctx context.Context, id string) (io.ReadCloser, Document, error) {
	doc, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, Document{}, err
	}
	file, err := os.Open(s.path(doc.ID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Document{}, ErrNotFound
		}
		return nil, Document{}, err
	}
	return file, doc, nil
}

func (s *service) path(id string) string {
	return filepath.Join(s.dir, id)
}

var Module = fx.Module("document",
	fx.Provide(NewService),
)
