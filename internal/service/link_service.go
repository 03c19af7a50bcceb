package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/SergeiKhy/linkbox/internal/csvexport"
	"github.com/SergeiKhy/linkbox/internal/models"
	"github.com/SergeiKhy/linkbox/internal/objectstore"
	"github.com/SergeiKhy/linkbox/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrInvalidURL   = errors.New("invalid original url")
	ErrInvalidCode  = errors.New("invalid short code")
	ErrLinkExists   = errors.New("short code already exists")
	ErrLinkNotFound = errors.New("link not found")
	ErrExportFailed = errors.New("export failed")
)

// Колонки CSV-выгрузки
var exportHeaders = []string{"id", "original_url", "short_url", "access_count", "created_at"}

var (
	shortCodePattern = regexp.MustCompile(`^[a-zA-Z0-9-]{3,64}$`)
	schemePattern    = regexp.MustCompile(`(?i)^https?://`)
)

// Коды, перекрытые статическими маршрутами HTTP API
var reservedCodes = map[string]struct{}{
	"export": {},
}

// IsValidationError сообщает, что ошибку может исправить клиент
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrInvalidCode)
}

//go:generate mockgen -destination=mocks/uploader.go -package=mocks . Uploader

// Uploader выгружает файл в объектное хранилище
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (*objectstore.Object, error)
}

// LinkService интерфейс сервиса ссылок
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error)
	ListLinks(ctx context.Context) ([]models.Link, error)
	ResolveLink(ctx context.Context, code string) (*models.Link, error)
	IncrementAccess(ctx context.Context, code string) (int64, error)
	DeleteLink(ctx context.Context, code string) error
	Export(ctx context.Context, originHint string) (*models.Export, error)
	RecentExports(ctx context.Context, limit int) ([]models.Export, error)
}

// Options дополнительные параметры сервиса
type Options struct {
	// ShortLinkBaseURL база для short_url в экспорте; если пусто, используется подсказка из запроса
	ShortLinkBaseURL string
	Now              func() time.Time
}

// linkService реализация сервиса ссылок
type linkService struct {
	linkRepo   repository.LinkRepository
	exportRepo repository.ExportRepository
	uploader   Uploader
	logger     *zap.Logger
	baseURL    string
	now        func() time.Time
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(
	linkRepo repository.LinkRepository,
	exportRepo repository.ExportRepository,
	uploader Uploader,
	logger *zap.Logger,
	opts Options,
) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &linkService{
		linkRepo:   linkRepo,
		exportRepo: exportRepo,
		uploader:   uploader,
		logger:     logger,
		baseURL:    strings.TrimRight(opts.ShortLinkBaseURL, "/"),
		now:        opts.Now,
	}
}

// CreateLink создаёт новую короткую ссылку
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error) {
	if err := validateShortCode(input.ShortCode); err != nil {
		return nil, err
	}

	originalURL, err := normalizeURL(input.OriginalURL)
	if err != nil {
		return nil, err
	}

	// Предварительная проверка даёт понятную ошибку; гарантию уникальности даёт ограничение в БД
	exists, err := s.linkRepo.ExistsByShortCode(ctx, input.ShortCode)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrLinkExists
	}

	link := &models.Link{
		ID:          uuid.New(),
		ShortCode:   input.ShortCode,
		OriginalURL: originalURL,
	}

	if err := s.linkRepo.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrCodeExists) {
			return nil, ErrLinkExists
		}
		return nil, err
	}

	s.logger.Info("Link created",
		zap.String("short_code", link.ShortCode),
		zap.String("id", link.ID.String()),
	)

	return link, nil
}

// ListLinks возвращает все ссылки, новые первыми
func (s *linkService) ListLinks(ctx context.Context) ([]models.Link, error) {
	return s.linkRepo.List(ctx)
}

// ResolveLink находит ссылку и атомарно увеличивает счётчик переходов
func (s *linkService) ResolveLink(ctx context.Context, code string) (*models.Link, error) {
	link, err := s.linkRepo.IncrementAccess(ctx, code)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return link, nil
}

// IncrementAccess увеличивает счётчик и возвращает его новое значение
func (s *linkService) IncrementAccess(ctx context.Context, code string) (int64, error) {
	link, err := s.linkRepo.IncrementAccess(ctx, code)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return link.AccessCount, nil
}

// DeleteLink удаляет ссылку по короткому коду
func (s *linkService) DeleteLink(ctx context.Context, code string) error {
	if err := s.linkRepo.Delete(ctx, code); err != nil {
		return mapNotFound(err)
	}

	s.logger.Info("Link deleted", zap.String("short_code", code))
	return nil
}

// Export формирует CSV со всеми ссылками и выгружает его в объектное хранилище
func (s *linkService) Export(ctx context.Context, originHint string) (*models.Export, error) {
	links, err := s.linkRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	base := s.baseURL
	if base == "" {
		base = originFromHint(originHint)
	}

	rows := make([][]any, 0, len(links))
	for _, link := range links {
		shortURL := link.ShortCode
		if base != "" {
			shortURL = base + "/" + link.ShortCode
		}
		rows = append(rows, []any{
			link.ID,
			link.OriginalURL,
			shortURL,
			link.AccessCount,
			link.CreatedAt,
		})
	}

	content := csvexport.Encode(exportHeaders, rows)

	obj, err := s.uploader.Upload(ctx, []byte(content), csvexport.ContentType)
	if err != nil {
		s.logger.Error("Failed to upload CSV export", zap.Int("rows", len(rows)), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}

	export := &models.Export{
		Key:       obj.Key,
		URL:       obj.URL,
		Rows:      len(rows),
		CreatedAt: s.now().UTC(),
	}

	// Выгрузка уже состоялась: ошибка журнала не должна её отменять
	if err := s.exportRepo.Record(ctx, export); err != nil {
		s.logger.Warn("Failed to record export", zap.String("key", export.Key), zap.Error(err))
	}

	s.logger.Info("Links exported", zap.String("key", export.Key), zap.Int("rows", export.Rows))

	return export, nil
}

// RecentExports возвращает последние успешные выгрузки
func (s *linkService) RecentExports(ctx context.Context, limit int) ([]models.Export, error) {
	return s.exportRepo.Recent(ctx, limit)
}

// validateShortCode проверяет формат кода (3-64 символа: буквы, цифры, дефис)
func validateShortCode(code string) error {
	if !shortCodePattern.MatchString(code) {
		return ErrInvalidCode
	}
	if _, reserved := reservedCodes[code]; reserved {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidCode, code)
	}
	return nil
}

// normalizeURL добавляет https:// при отсутствии схемы и проверяет, что URL абсолютный
func normalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidURL
	}

	if !schemePattern.MatchString(trimmed) {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return "", ErrInvalidURL
	}

	return trimmed, nil
}

// originFromHint оставляет от Origin/Referer только scheme://host
func originFromHint(hint string) string {
	if hint == "" {
		return ""
	}

	parsed, err := url.Parse(hint)
	if err != nil || parsed.Host == "" {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}

	return parsed.Scheme + "://" + parsed.Host
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrLinkNotFound) {
		return ErrLinkNotFound
	}
	return err
}
