package service_test

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/SergeiKhy/linkbox/internal/models"
	"github.com/SergeiKhy/linkbox/internal/objectstore"
	"github.com/SergeiKhy/linkbox/internal/service"
	"github.com/SergeiKhy/linkbox/internal/service/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	service    service.LinkService
	linkRepo   *mocks.MockLinkRepository
	exportRepo *mocks.MockExportRepository
	uploader   *mocks.MockUploader
}

// setupTestService создаёт тестовое окружение с моковыми репозиториями
func setupTestService(t *testing.T, opts service.Options) *testEnv {
	ctrl := gomock.NewController(t)

	linkRepo := mocks.NewMockLinkRepository()
	exportRepo := mocks.NewMockExportRepository()
	uploader := mocks.NewMockUploader(ctrl)
	logger, _ := zap.NewDevelopment()

	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}

	return &testEnv{
		service:    service.NewLinkService(linkRepo, exportRepo, uploader, logger, opts),
		linkRepo:   linkRepo,
		exportRepo: exportRepo,
		uploader:   uploader,
	}
}

func createLink(t *testing.T, svc service.LinkService, url, code string) *models.Link {
	t.Helper()
	link, err := svc.CreateLink(context.Background(), &models.CreateLinkInput{OriginalURL: url, ShortCode: code})
	require.NoError(t, err)
	return link
}

// TestLinkService_Lifecycle проверяет полный цикл: создание, переход, удаление
func TestLinkService_Lifecycle(t *testing.T) {
	env := setupTestService(t, service.Options{})
	ctx := context.Background()

	link := createLink(t, env.service, "example.com", "my-link")
	assert.Equal(t, "https://example.com", link.OriginalURL)
	assert.Equal(t, "my-link", link.ShortCode)
	assert.Equal(t, int64(0), link.AccessCount)
	assert.NotEqual(t, uuid.Nil, link.ID)
	assert.False(t, link.CreatedAt.IsZero())

	resolved, err := env.service.ResolveLink(ctx, "my-link")
	require.NoError(t, err)
	assert.Equal(t, int64(1), resolved.AccessCount)
	assert.Equal(t, link.ID, resolved.ID)

	require.NoError(t, env.service.DeleteLink(ctx, "my-link"))

	_, err = env.service.ResolveLink(ctx, "my-link")
	assert.ErrorIs(t, err, service.ErrLinkNotFound)
}

// TestLinkService_CreateLink_NormalizesURL проверяет нормализацию схемы
func TestLinkService_CreateLink_NormalizesURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"example.com", "https://example.com"},
		{"  example.com/path?q=1  ", "https://example.com/path?q=1"},
		{"http://example.com", "http://example.com"},
		{"HTTPS://Example.com/A", "HTTPS://Example.com/A"},
		{"https://sub.example.com/path?query=value", "https://sub.example.com/path?query=value"},
	}

	for i, tt := range tests {
		env := setupTestService(t, service.Options{})
		link := createLink(t, env.service, tt.input, fmt.Sprintf("code-%d", i))
		assert.Equal(t, tt.want, link.OriginalURL, tt.input)
	}
}

// TestLinkService_CreateLink_InvalidURL проверяет отклонение невалидных URL
func TestLinkService_CreateLink_InvalidURL(t *testing.T) {
	invalidURLs := []string{
		"",
		"   ",
		"https://",
		"exa mple.com",
		"https://bad host.com",
	}

	for _, url := range invalidURLs {
		env := setupTestService(t, service.Options{})
		link, err := env.service.CreateLink(context.Background(), &models.CreateLinkInput{
			OriginalURL: url,
			ShortCode:   "valid-code",
		})

		assert.ErrorIs(t, err, service.ErrInvalidURL, "URL должен быть невалидным: %q", url)
		assert.True(t, service.IsValidationError(err))
		assert.Nil(t, link)
	}
}

// TestLinkService_CreateLink_InvalidCode проверяет валидацию короткого кода
func TestLinkService_CreateLink_InvalidCode(t *testing.T) {
	invalidCodes := []string{
		"",
		"ab",
		strings.Repeat("a", 65),
		"invalid@code",
		"under_score",
		"with space",
		"export",
	}

	for _, code := range invalidCodes {
		env := setupTestService(t, service.Options{})
		link, err := env.service.CreateLink(context.Background(), &models.CreateLinkInput{
			OriginalURL: "https://example.com",
			ShortCode:   code,
		})

		assert.ErrorIs(t, err, service.ErrInvalidCode, "код должен быть невалидным: %q", code)
		assert.Nil(t, link)
	}
}

// TestLinkService_CreateLink_ValidCodeBounds проверяет граничные длины кода
func TestLinkService_CreateLink_ValidCodeBounds(t *testing.T) {
	env := setupTestService(t, service.Options{})

	createLink(t, env.service, "https://example.com", "abc")
	createLink(t, env.service, "https://example.com", strings.Repeat("Z", 64))
	createLink(t, env.service, "https://example.com", "Mixed-Case-9")
}

// TestLinkService_CreateLink_EmptyInput пустой URL и короткий код
func TestLinkService_CreateLink_EmptyInput(t *testing.T) {
	env := setupTestService(t, service.Options{})

	_, err := env.service.CreateLink(context.Background(), &models.CreateLinkInput{OriginalURL: "", ShortCode: "ab"})
	assert.True(t, service.IsValidationError(err))
}

// TestLinkService_CreateLink_Duplicate повторный код всегда конфликт, независимо от URL
func TestLinkService_CreateLink_Duplicate(t *testing.T) {
	env := setupTestService(t, service.Options{})
	createLink(t, env.service, "https://example.com", "taken")

	for _, url := range []string{"https://example.com", "https://other.example.org"} {
		link, err := env.service.CreateLink(context.Background(), &models.CreateLinkInput{
			OriginalURL: url,
			ShortCode:   "taken",
		})
		assert.ErrorIs(t, err, service.ErrLinkExists)
		assert.Nil(t, link)
	}
}

// TestLinkService_CreateLink_CaseSensitive коды с разным регистром различны
func TestLinkService_CreateLink_CaseSensitive(t *testing.T) {
	env := setupTestService(t, service.Options{})

	createLink(t, env.service, "https://example.com/a", "Code")
	createLink(t, env.service, "https://example.com/b", "code")
}

// TestLinkService_CreateLink_UniqueViolationRace ограничение БД срабатывает после пройденной предпроверки
func TestLinkService_CreateLink_UniqueViolationRace(t *testing.T) {
	env := setupTestService(t, service.Options{})
	createLink(t, env.service, "https://example.com", "racy")

	env.linkRepo.HideExisting = true

	_, err := env.service.CreateLink(context.Background(), &models.CreateLinkInput{
		OriginalURL: "https://example.com",
		ShortCode:   "racy",
	})
	assert.ErrorIs(t, err, service.ErrLinkExists)
}

// TestLinkService_CreateLink_ConcurrentSameCode ровно одно создание из N параллельных
func TestLinkService_CreateLink_ConcurrentSameCode(t *testing.T) {
	env := setupTestService(t, service.Options{})
	env.linkRepo.HideExisting = true

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := env.service.CreateLink(context.Background(), &models.CreateLinkInput{
				OriginalURL: fmt.Sprintf("https://example.com/%d", id),
				ShortCode:   "shared",
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, service.ErrLinkExists):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}

// TestLinkService_CreateLink_StorageError ошибка хранилища не маскируется под конфликт
func TestLinkService_CreateLink_StorageError(t *testing.T) {
	env := setupTestService(t, service.Options{})
	env.linkRepo.Err = errors.New("connection reset")

	_, err := env.service.CreateLink(context.Background(), &models.CreateLinkInput{
		OriginalURL: "https://example.com",
		ShortCode:   "valid",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrLinkExists)
	assert.False(t, service.IsValidationError(err))
}

// TestLinkService_ListLinks новые ссылки первыми
func TestLinkService_ListLinks(t *testing.T) {
	env := setupTestService(t, service.Options{})

	links, err := env.service.ListLinks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, links)

	createLink(t, env.service, "https://example.com/1", "first")
	createLink(t, env.service, "https://example.com/2", "second")

	links, err = env.service.ListLinks(context.Background())
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "second", links[0].ShortCode)
	assert.Equal(t, "first", links[1].ShortCode)
}

// TestLinkService_ResolveLink_NotFound несуществующий код
func TestLinkService_ResolveLink_NotFound(t *testing.T) {
	env := setupTestService(t, service.Options{})

	link, err := env.service.ResolveLink(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, service.ErrLinkNotFound)
	assert.Nil(t, link)
}

// TestLinkService_IncrementAccess счётчик строго растёт на 1 за вызов
func TestLinkService_IncrementAccess(t *testing.T) {
	env := setupTestService(t, service.Options{})
	createLink(t, env.service, "https://example.com", "counter")
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, err := env.service.IncrementAccess(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	resolved, err := env.service.ResolveLink(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(4), resolved.AccessCount)

	_, err = env.service.IncrementAccess(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrLinkNotFound)
}

// TestLinkService_ConcurrentIncrements N параллельных вызовов увеличивают счётчик ровно на N
func TestLinkService_ConcurrentIncrements(t *testing.T) {
	env := setupTestService(t, service.Options{})
	createLink(t, env.service, "https://example.com", "hot")

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = env.service.ResolveLink(context.Background(), "hot")
			} else {
				_, err = env.service.IncrementAccess(context.Background(), "hot")
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, ok := env.linkRepo.Get("hot")
	require.True(t, ok)
	assert.Equal(t, int64(n), stored.AccessCount)
}

// TestLinkService_DeleteLink_NotFound удаление несуществующей ссылки
func TestLinkService_DeleteLink_NotFound(t *testing.T) {
	env := setupTestService(t, service.Options{})

	err := env.service.DeleteLink(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, service.ErrLinkNotFound)
}

// TestLinkService_DeleteLink_Terminal удалённый код нельзя удалить или увеличить повторно
func TestLinkService_DeleteLink_Terminal(t *testing.T) {
	env := setupTestService(t, service.Options{})
	createLink(t, env.service, "https://example.com", "gone")
	ctx := context.Background()

	require.NoError(t, env.service.DeleteLink(ctx, "gone"))
	assert.ErrorIs(t, env.service.DeleteLink(ctx, "gone"), service.ErrLinkNotFound)

	_, err := env.service.IncrementAccess(ctx, "gone")
	assert.ErrorIs(t, err, service.ErrLinkNotFound)
}

// parseUpload разбирает выгруженный CSV
func parseUpload(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return records
}

// TestLinkService_Export_ConfiguredBase база из конфигурации имеет приоритет над заголовком
func TestLinkService_Export_ConfiguredBase(t *testing.T) {
	env := setupTestService(t, service.Options{ShortLinkBaseURL: "https://sho.rt/"})
	first := createLink(t, env.service, "https://example.com/a,b", "first")
	second := createLink(t, env.service, "example.com/\"q\"", "second")
	_, err := env.service.IncrementAccess(context.Background(), "first")
	require.NoError(t, err)

	var uploaded []byte
	env.uploader.EXPECT().
		Upload(gomock.Any(), gomock.Any(), "text/csv").
		DoAndReturn(func(_ context.Context, data []byte, _ string) (*objectstore.Object, error) {
			uploaded = data
			return &objectstore.Object{Key: "k.csv", URL: "https://pub.example/k.csv"}, nil
		})

	export, err := env.service.Export(context.Background(), "https://evil.example/page")
	require.NoError(t, err)
	assert.Equal(t, "https://pub.example/k.csv", export.URL)
	assert.Equal(t, 2, export.Rows)
	assert.Equal(t, fixedNow, export.CreatedAt)

	records := parseUpload(t, uploaded)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"id", "original_url", "short_url", "access_count", "created_at"}, records[0])

	assert.Equal(t, []string{
		second.ID.String(),
		`https://example.com/"q"`,
		"https://sho.rt/second",
		"0",
		second.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}, records[1])
	assert.Equal(t, []string{
		first.ID.String(),
		"https://example.com/a,b",
		"https://sho.rt/first",
		"1",
		first.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}, records[2])

	recent, err := env.service.RecentExports(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "k.csv", recent[0].Key)
}

// TestLinkService_Export_OriginHint без конфигурации база берётся из Origin/Referer
func TestLinkService_Export_OriginHint(t *testing.T) {
	tests := []struct {
		name string
		hint string
		want string
	}{
		{"origin", "https://app.example", "https://app.example/abc"},
		{"referer с путём", "https://app.example:8443/links?page=2", "https://app.example:8443/abc"},
		{"без подсказки", "", "abc"},
		{"мусор", "not a url", "abc"},
		{"чужая схема", "ftp://files.example", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestService(t, service.Options{})
			createLink(t, env.service, "https://example.com", "abc")

			var uploaded []byte
			env.uploader.EXPECT().
				Upload(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, data []byte, _ string) (*objectstore.Object, error) {
					uploaded = data
					return &objectstore.Object{Key: "k.csv", URL: "https://pub.example/k.csv"}, nil
				})

			_, err := env.service.Export(context.Background(), tt.hint)
			require.NoError(t, err)

			records := parseUpload(t, uploaded)
			require.Len(t, records, 2)
			assert.Equal(t, tt.want, records[1][2])
		})
	}
}

// TestLinkService_Export_Empty пустая таблица даёт CSV только с заголовком
func TestLinkService_Export_Empty(t *testing.T) {
	env := setupTestService(t, service.Options{})

	env.uploader.EXPECT().
		Upload(gomock.Any(), []byte("id,original_url,short_url,access_count,created_at"), "text/csv").
		Return(&objectstore.Object{Key: "k.csv", URL: "https://pub.example/k.csv"}, nil)

	export, err := env.service.Export(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, export.Rows)
}

// TestLinkService_Export_UploadFailure ошибка выгрузки возвращается вызывающему и не меняет ссылки
func TestLinkService_Export_UploadFailure(t *testing.T) {
	for _, cause := range []error{objectstore.ErrNotConfigured, errors.New("dial tcp: timeout")} {
		env := setupTestService(t, service.Options{})
		createLink(t, env.service, "https://example.com", "stay")

		env.uploader.EXPECT().
			Upload(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, cause)

		export, err := env.service.Export(context.Background(), "")
		assert.ErrorIs(t, err, service.ErrExportFailed)
		assert.ErrorIs(t, err, cause)
		assert.Nil(t, export)

		stored, ok := env.linkRepo.Get("stay")
		require.True(t, ok)
		assert.Equal(t, int64(0), stored.AccessCount)

		recent, err := env.service.RecentExports(context.Background(), 0)
		require.NoError(t, err)
		assert.Empty(t, recent)
	}
}

// TestLinkService_Export_StorageFailure ошибка чтения не является ошибкой выгрузки
func TestLinkService_Export_StorageFailure(t *testing.T) {
	env := setupTestService(t, service.Options{})
	env.linkRepo.Err = errors.New("connection reset")

	_, err := env.service.Export(context.Background(), "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrExportFailed)
}

// TestLinkService_Export_RecordFailureIgnored сбой журнала не отменяет успешную выгрузку
func TestLinkService_Export_RecordFailureIgnored(t *testing.T) {
	env := setupTestService(t, service.Options{})
	env.exportRepo.RecordErr = errors.New("redis down")

	env.uploader.EXPECT().
		Upload(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&objectstore.Object{Key: "k.csv", URL: "https://pub.example/k.csv"}, nil)

	export, err := env.service.Export(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "https://pub.example/k.csv", export.URL)
}
