package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/config"
	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/db/repositories"
	"github.com/plugin-registry/plugin-registry/internal/publish"
	"github.com/plugin-registry/plugin-registry/internal/storage"
	"github.com/plugin-registry/plugin-registry/internal/storage/local"
)

type stubPlugins struct {
	plugin     *models.Plugin
	versions   []*models.Version
	exists     bool
	yankedOK   bool
	searchRes  []*repositories.SearchResult
	searchTot  int64
	err        error
	downloaded bool

	yankedTo   *bool
	lookupName string
}

func (s *stubPlugins) FindByAuthorAndName(_ context.Context, author, name string) (*models.Plugin, error) {
	s.lookupName = name
	return s.plugin, s.err
}

func (s *stubPlugins) FindVersion(_ context.Context, _, num string) (*models.Version, error) {
	for _, v := range s.versions {
		if v.Num == num {
			return v, nil
		}
	}
	return nil, s.err
}

func (s *stubPlugins) ListVersions(context.Context, string) ([]*models.Version, error) {
	return s.versions, s.err
}

func (s *stubPlugins) SetYanked(_ context.Context, _, _, _ string, yanked bool) (bool, error) {
	s.yankedTo = &yanked
	return s.yankedOK, s.err
}

func (s *stubPlugins) IncrementDownloads(context.Context, string, string) error {
	s.downloaded = true
	return nil
}

func (s *stubPlugins) Search(context.Context, repositories.SearchParams) ([]*repositories.SearchResult, int64, error) {
	return s.searchRes, s.searchTot, s.err
}

func (s *stubPlugins) ExistsByName(context.Context, string) (bool, error) {
	return s.exists, s.err
}

type stubPipeline struct {
	plugin  *models.Plugin
	version *models.Version
	err     *publish.Error
}

func (s *stubPipeline) Run(context.Context, *models.Account, io.Reader) (*models.Plugin, *models.Version, *publish.Error) {
	return s.plugin, s.version, s.err
}

func newPluginRouter(t *testing.T, plugins PluginQuerier, pipeline Publisher) *gin.Engine {
	t.Helper()
	backend, err := local.New(&config.LocalStorageConfig{BasePath: t.TempDir()}, "http://localhost:3000")
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	return newPluginRouterWithStore(plugins, pipeline, backend)
}

func newPluginRouterWithStore(plugins PluginQuerier, pipeline Publisher, backend storage.Backend) *gin.Engine {
	handlers := NewPluginHandlers(plugins, pipeline, backend, time.Minute)
	account := &models.Account{ID: "acct-1", GhLogin: "octocat"}

	router := gin.New()
	router.GET("/plugins", handlers.Search)
	router.GET("/plugins/:author/:name/:version", handlers.GetPlugin)
	router.GET("/plugins/:author/:name/:version/download", handlers.Download)
	router.GET("/plugins/:author/:name/:version/readme", handlers.Readme)
	router.GET("/plugins/:author/:name/:version/icon", handlers.Icon)

	authed := router.Group("/me/plugins", withAccount(account))
	authed.PUT("/new", handlers.Publish)
	authed.PUT("/:name/:version/yank", handlers.Yank)
	authed.PUT("/:name/:version/unyank", handlers.Unyank)
	return router
}

func samplePlugin() *models.Plugin {
	return &models.Plugin{
		ID:          "plg-1",
		AccountID:   "acct-1",
		Name:        "rainbow",
		DisplayName: "Rainbow Brackets",
		Author:      "octocat",
		Description: "colorize matching brackets",
		Wasm:        true,
		Downloads:   7,
	}
}

func TestGetPluginLatestSkipsYankedAndPrefersHighest(t *testing.T) {
	plugins := &stubPlugins{
		plugin: samplePlugin(),
		versions: []*models.Version{
			{ID: "v1", Num: "0.9.0"},
			{ID: "v2", Num: "0.10.0"},
			{ID: "v3", Num: "0.11.0", Yanked: true},
		},
	}
	router := newPluginRouter(t, plugins, &stubPipeline{})

	req := httptest.NewRequest(http.MethodGet, "/plugins/octocat/rainbow/latest", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var body encodedPlugin
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Version != "0.10.0" {
		t.Errorf("version = %q, want 0.10.0", body.Version)
	}
	if body.Author != "octocat" || body.Name != "rainbow" {
		t.Errorf("identity = %s/%s, want octocat/rainbow", body.Author, body.Name)
	}
}

func TestGetPluginExactVersion(t *testing.T) {
	plugins := &stubPlugins{
		plugin:   samplePlugin(),
		versions: []*models.Version{{ID: "v1", Num: "0.9.0"}},
	}
	router := newPluginRouter(t, plugins, &stubPipeline{})

	req := httptest.NewRequest(http.MethodGet, "/plugins/octocat/rainbow/0.9.0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestGetPluginNameIsCaseInsensitive(t *testing.T) {
	plugins := &stubPlugins{
		plugin:   samplePlugin(),
		versions: []*models.Version{{ID: "v1", Num: "0.9.0"}},
	}
	router := newPluginRouter(t, plugins, &stubPipeline{})

	req := httptest.NewRequest(http.MethodGet, "/plugins/octocat/Rainbow/latest", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if plugins.lookupName != "rainbow" {
		t.Errorf("lookup name = %q, want lowercased rainbow", plugins.lookupName)
	}
}

func TestGetPluginNotFound(t *testing.T) {
	router := newPluginRouter(t, &stubPlugins{}, &stubPipeline{})

	req := httptest.NewRequest(http.MethodGet, "/plugins/octocat/missing/latest", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDownloadIncrementsAndRedirects(t *testing.T) {
	backend, err := local.New(&config.LocalStorageConfig{BasePath: t.TempDir()}, "http://localhost:3000")
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	key := publish.ObjectKey("octocat", "rainbow", "0.9.0", publish.ArchiveObject)
	archive := "gzip bytes"
	if _, err := backend.Upload(context.Background(), key, strings.NewReader(archive), int64(len(archive)), "application/gzip"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	plugins := &stubPlugins{
		plugin:   samplePlugin(),
		versions: []*models.Version{{ID: "v1", Num: "0.9.0"}},
	}
	router := newPluginRouterWithStore(plugins, &stubPipeline{}, backend)

	req := httptest.NewRequest(http.MethodGet, "/plugins/octocat/rainbow/0.9.0/download", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302: %s", w.Code, w.Body.String())
	}
	if !plugins.downloaded {
		t.Error("download counters not incremented")
	}
	location := w.Header().Get("Location")
	if !strings.Contains(location, "octocat/rainbow/0.9.0/"+publish.ArchiveObject) {
		t.Errorf("redirect location = %q", location)
	}
}

func TestIconServedWithCacheControl(t *testing.T) {
	backend, err := local.New(&config.LocalStorageConfig{BasePath: t.TempDir()}, "http://localhost:3000")
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	key := publish.ObjectKey("octocat", "rainbow", "0.9.0", publish.IconObject)
	icon := []byte("\x89PNG fake")
	if _, err := backend.Upload(context.Background(), key, strings.NewReader(string(icon)), int64(len(icon)), "image/png"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	plugins := &stubPlugins{
		plugin:   samplePlugin(),
		versions: []*models.Version{{ID: "v1", Num: "0.9.0"}},
	}
	router := newPluginRouterWithStore(plugins, &stubPipeline{}, backend)

	req := httptest.NewRequest(http.MethodGet, "/plugins/octocat/rainbow/0.9.0/icon", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); got != "public, max-age=86400" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Body.String() != string(icon) {
		t.Error("icon bytes do not round-trip")
	}
}

func TestReadmeNotFound(t *testing.T) {
	plugins := &stubPlugins{
		plugin:   samplePlugin(),
		versions: []*models.Version{{ID: "v1", Num: "0.9.0"}},
	}
	router := newPluginRouter(t, plugins, &stubPipeline{})

	req := httptest.NewRequest(http.MethodGet, "/plugins/octocat/rainbow/0.9.0/readme", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSearchResponseShape(t *testing.T) {
	plugins := &stubPlugins{
		searchRes: []*repositories.SearchResult{
			{Plugin: *samplePlugin(), GhLogin: "octocat"},
		},
		searchTot: 1,
		versions:  []*models.Version{{ID: "v1", Num: "0.9.0"}},
	}
	router := newPluginRouter(t, plugins, &stubPipeline{})

	req := httptest.NewRequest(http.MethodGet, "/plugins?q=rainbow&limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var body struct {
		Total   int64           `json:"total"`
		Limit   int             `json:"limit"`
		Offset  int             `json:"offset"`
		Plugins []encodedPlugin `json:"plugins"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Total != 1 || body.Limit != 10 || body.Offset != 0 {
		t.Errorf("total/limit/offset = %d/%d/%d", body.Total, body.Limit, body.Offset)
	}
	if len(body.Plugins) != 1 || body.Plugins[0].Version != "0.9.0" {
		t.Errorf("plugins = %+v", body.Plugins)
	}
}

func TestSearchClampsLimit(t *testing.T) {
	plugins := &stubPlugins{}
	router := newPluginRouter(t, plugins, &stubPipeline{})

	req := httptest.NewRequest(http.MethodGet, "/plugins?limit=500", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body struct {
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Limit != 100 {
		t.Errorf("limit = %d, want 100", body.Limit)
	}
}

func TestPublishReturnsPipelineError(t *testing.T) {
	pipeline := &stubPipeline{err: &publish.Error{
		Status:  http.StatusBadRequest,
		Message: "volt.toml is missing",
		Stage:   "manifest",
	}}
	router := newPluginRouter(t, &stubPlugins{}, pipeline)

	req := httptest.NewRequest(http.MethodPut, "/me/plugins/new", strings.NewReader("not an archive"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "volt.toml is missing") {
		t.Errorf("body = %s, want pipeline message", w.Body.String())
	}
}

func TestPublishSuccess(t *testing.T) {
	pipeline := &stubPipeline{
		plugin:  samplePlugin(),
		version: &models.Version{ID: "v1", Num: "1.0.0"},
	}
	router := newPluginRouter(t, &stubPlugins{}, pipeline)

	req := httptest.NewRequest(http.MethodPut, "/me/plugins/new", strings.NewReader("archive bytes"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
}

func TestYankOwnedPlugin(t *testing.T) {
	plugins := &stubPlugins{plugin: samplePlugin(), yankedOK: true}
	router := newPluginRouter(t, plugins, &stubPipeline{})

	req := httptest.NewRequest(http.MethodPut, "/me/plugins/rainbow/0.9.0/yank", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if plugins.yankedTo == nil || !*plugins.yankedTo {
		t.Error("SetYanked not called with yanked=true")
	}
}

func TestUnyank(t *testing.T) {
	plugins := &stubPlugins{plugin: samplePlugin(), yankedOK: true}
	router := newPluginRouter(t, plugins, &stubPipeline{})

	req := httptest.NewRequest(http.MethodPut, "/me/plugins/rainbow/0.9.0/unyank", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if plugins.yankedTo == nil || *plugins.yankedTo {
		t.Error("SetYanked not called with yanked=false")
	}
}

func TestYankNormalizesName(t *testing.T) {
	plugins := &stubPlugins{plugin: samplePlugin(), yankedOK: true}
	router := newPluginRouter(t, plugins, &stubPipeline{})

	req := httptest.NewRequest(http.MethodPut, "/me/plugins/Rainbow/0.9.0/yank", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if plugins.lookupName != "rainbow" {
		t.Errorf("lookup name = %q, want lowercased rainbow", plugins.lookupName)
	}
}

func TestYankNotOwnedIsForbidden(t *testing.T) {
	// Plugin exists under another account: no plugin under the caller's
	// login, but the name is taken.
	plugins := &stubPlugins{plugin: nil, exists: true}
	router := newPluginRouter(t, plugins, &stubPipeline{})

	req := httptest.NewRequest(http.MethodPut, "/me/plugins/rainbow/0.9.0/yank", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestYankUnknownPluginIsNotFound(t *testing.T) {
	router := newPluginRouter(t, &stubPlugins{}, &stubPipeline{})

	req := httptest.NewRequest(http.MethodPut, "/me/plugins/ghost/0.9.0/yank", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestYankUnknownVersionIsNotFound(t *testing.T) {
	plugins := &stubPlugins{plugin: samplePlugin(), yankedOK: false}
	router := newPluginRouter(t, plugins, &stubPipeline{})

	req := httptest.NewRequest(http.MethodPut, "/me/plugins/rainbow/9.9.9/yank", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
