// plugins.go implements the public plugin endpoints (search, metadata,
// download, readme, icon) and the authenticated publish/yank operations.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/db/repositories"
	"github.com/plugin-registry/plugin-registry/internal/middleware"
	"github.com/plugin-registry/plugin-registry/internal/publish"
	"github.com/plugin-registry/plugin-registry/internal/storage"
	"github.com/plugin-registry/plugin-registry/internal/telemetry"
	"github.com/plugin-registry/plugin-registry/internal/validation"
)

// latestAlias resolves to the highest non-yanked semantic version.
const latestAlias = "latest"

// iconCacheControl mirrors the caching policy of plugin icons.
const iconCacheControl = "public, max-age=86400"

// PluginQuerier is the repository surface the plugin handlers need.
type PluginQuerier interface {
	FindByAuthorAndName(ctx context.Context, author, name string) (*models.Plugin, error)
	FindVersion(ctx context.Context, pluginID, num string) (*models.Version, error)
	ListVersions(ctx context.Context, pluginID string) ([]*models.Version, error)
	SetYanked(ctx context.Context, accountID, name, num string, yanked bool) (bool, error)
	IncrementDownloads(ctx context.Context, pluginID, versionID string) error
	Search(ctx context.Context, params repositories.SearchParams) ([]*repositories.SearchResult, int64, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
}

// Publisher runs the publish pipeline.
type Publisher interface {
	Run(ctx context.Context, account *models.Account, body io.Reader) (*models.Plugin, *models.Version, *publish.Error)
}

// PluginHandlers serves /plugins and /me/plugins.
type PluginHandlers struct {
	plugins     PluginQuerier
	pipeline    Publisher
	store       storage.Backend
	downloadTTL time.Duration
}

// NewPluginHandlers creates the plugin handler set.
func NewPluginHandlers(plugins PluginQuerier, pipeline Publisher, store storage.Backend, downloadTTL time.Duration) *PluginHandlers {
	return &PluginHandlers{
		plugins:     plugins,
		pipeline:    pipeline,
		store:       store,
		downloadTTL: downloadTTL,
	}
}

// encodedPlugin is the wire shape of a plugin in search and metadata
// responses.
type encodedPlugin struct {
	Name        string    `json:"name"`
	Author      string    `json:"author"`
	Version     string    `json:"version"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	Downloads   int64     `json:"downloads"`
	Repository  *string   `json:"repository"`
	UpdatedAt   time.Time `json:"updated_at"`
	ReleasedAt  time.Time `json:"released_at"`
	Wasm        bool      `json:"wasm"`
	Yanked      bool      `json:"yanked,omitempty"`
}

func encodePlugin(p *models.Plugin, author string, v *models.Version) encodedPlugin {
	return encodedPlugin{
		Name:        p.Name,
		Author:      author,
		Version:     v.Num,
		DisplayName: p.DisplayName,
		Description: p.Description,
		Downloads:   p.Downloads,
		Repository:  p.Repository,
		UpdatedAt:   p.UpdatedAt,
		ReleasedAt:  v.CreatedAt,
		Wasm:        p.Wasm,
		Yanked:      v.Yanked,
	}
}

// Publish accepts a streamed plugin archive and runs the publish pipeline.
func (h *PluginHandlers) Publish(c *gin.Context) {
	account := middleware.CurrentAccount(c)

	plugin, version, perr := h.pipeline.Run(c.Request.Context(), account, c.Request.Body)
	if perr != nil {
		c.JSON(perr.Status, gin.H{"error": perr.Message})
		return
	}

	c.JSON(http.StatusCreated, encodePlugin(plugin, account.GhLogin, version))
}

// Yank marks a version yanked.
func (h *PluginHandlers) Yank(c *gin.Context) {
	h.setYanked(c, true)
}

// Unyank clears the yank flag.
func (h *PluginHandlers) Unyank(c *gin.Context) {
	h.setYanked(c, false)
}

func (h *PluginHandlers) setYanked(c *gin.Context, yanked bool) {
	account := middleware.CurrentAccount(c)
	name := strings.ToLower(c.Param("name"))
	num := c.Param("version")

	owned, err := h.plugins.FindByAuthorAndName(c.Request.Context(), account.GhLogin, name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up plugin"})
		return
	}
	if owned == nil {
		exists, err := h.plugins.ExistsByName(c.Request.Context(), name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up plugin"})
			return
		}
		if exists {
			c.JSON(http.StatusForbidden, gin.H{"error": "you do not own this plugin"})
		} else {
			c.JSON(http.StatusNotFound, gin.H{"error": "plugin not found"})
		}
		return
	}

	ok, err := h.plugins.SetYanked(c.Request.Context(), account.ID, name, num, yanked)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update version"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "version not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"name": name, "version": num, "yanked": yanked})
}

// Search lists plugins matching a query.
func (h *PluginHandlers) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	params := repositories.SearchParams{
		Query:  c.Query("q"),
		Sort:   c.Query("sort"),
		Limit:  limit,
		Offset: offset,
	}

	results, total, err := h.plugins.Search(c.Request.Context(), params)
	if err != nil {
		slog.Error("plugin search failed", "query", params.Query, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	plugins := make([]encodedPlugin, 0, len(results))
	for _, result := range results {
		latest, err := h.latestVersion(c.Request.Context(), result.ID)
		if err != nil || latest == nil {
			continue
		}
		plugins = append(plugins, encodePlugin(&result.Plugin, result.GhLogin, latest))
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"limit":   params.Limit,
		"offset":  params.Offset,
		"plugins": plugins,
	})
}

// GetPlugin returns the metadata of one plugin version. The version segment
// accepts "latest".
func (h *PluginHandlers) GetPlugin(c *gin.Context) {
	plugin, version, ok := h.resolve(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, encodePlugin(plugin, c.Param("author"), version))
}

// Download bumps the download counters and redirects to the archive URL.
func (h *PluginHandlers) Download(c *gin.Context) {
	plugin, version, ok := h.resolve(c)
	if !ok {
		return
	}

	if err := h.plugins.IncrementDownloads(c.Request.Context(), plugin.ID, version.ID); err != nil {
		slog.Warn("download counter update failed", "plugin", plugin.Name, "error", err)
	}
	telemetry.PluginDownloadsTotal.WithLabelValues(c.Param("author")).Inc()

	key := publish.ObjectKey(c.Param("author"), plugin.Name, version.Num, publish.ArchiveObject)
	url, err := h.store.GetURL(c.Request.Context(), key, h.downloadTTL)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "archive not found"})
		return
	}

	c.Redirect(http.StatusFound, url)
}

// Readme streams the version's readme.
func (h *PluginHandlers) Readme(c *gin.Context) {
	plugin, version, ok := h.resolve(c)
	if !ok {
		return
	}

	key := publish.ObjectKey(c.Param("author"), plugin.Name, version.Num, publish.ReadmeObject)
	h.proxyObject(c, key, "text/markdown", "")
}

// Icon streams the version's icon with its stored content type and a
// day-long cache policy.
func (h *PluginHandlers) Icon(c *gin.Context) {
	plugin, version, ok := h.resolve(c)
	if !ok {
		return
	}

	key := publish.ObjectKey(c.Param("author"), plugin.Name, version.Num, publish.IconObject)
	meta, err := h.store.GetMetadata(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "icon not found"})
		return
	}

	h.proxyObject(c, key, meta.ContentType, iconCacheControl)
}

func (h *PluginHandlers) proxyObject(c *gin.Context, key, contentType, cacheControl string) {
	reader, err := h.store.Download(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}
	defer reader.Close()

	if cacheControl != "" {
		c.Header("Cache-Control", cacheControl)
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		slog.Warn("object proxy interrupted", "key", key, "error", err)
	}
}

// resolve loads the plugin and the requested version, handling the latest
// alias and writing the error response itself when the lookup fails.
func (h *PluginHandlers) resolve(c *gin.Context) (*models.Plugin, *models.Version, bool) {
	// Plugin names are stored lowercase; normalise the path parameter so
	// lookups are case-insensitive.
	name := strings.ToLower(c.Param("name"))
	plugin, err := h.plugins.FindByAuthorAndName(c.Request.Context(), c.Param("author"), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up plugin"})
		return nil, nil, false
	}
	if plugin == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "plugin not found"})
		return nil, nil, false
	}

	num := c.Param("version")
	if num == latestAlias {
		latest, err := h.latestVersion(c.Request.Context(), plugin.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve latest version"})
			return nil, nil, false
		}
		if latest == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no published versions"})
			return nil, nil, false
		}
		return plugin, latest, true
	}

	version, err := h.plugins.FindVersion(c.Request.Context(), plugin.ID, num)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up version"})
		return nil, nil, false
	}
	if version == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "version not found"})
		return nil, nil, false
	}

	return plugin, version, true
}

// latestVersion picks the highest non-yanked version by semantic version
// precedence. Returns nil when the plugin has no eligible versions.
func (h *PluginHandlers) latestVersion(ctx context.Context, pluginID string) (*models.Version, error) {
	versions, err := h.plugins.ListVersions(ctx, pluginID)
	if err != nil {
		return nil, err
	}

	byNum := make(map[string]*models.Version)
	var nums []string
	for _, v := range versions {
		if v.Yanked {
			continue
		}
		byNum[v.Num] = v
		nums = append(nums, v.Num)
	}
	if len(nums) == 0 {
		return nil, nil
	}

	num, err := validation.Latest(nums)
	if err != nil {
		return nil, nil
	}
	return byNum[num], nil
}
