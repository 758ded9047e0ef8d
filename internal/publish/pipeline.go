package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/db/repositories"
	"github.com/plugin-registry/plugin-registry/internal/manifest"
	"github.com/plugin-registry/plugin-registry/internal/storage"
	"github.com/plugin-registry/plugin-registry/internal/telemetry"
	"github.com/plugin-registry/plugin-registry/internal/validation"
	"github.com/plugin-registry/plugin-registry/pkg/checksum"
)

// ArchiveObject is the storage object name of the repackaged plugin archive.
const ArchiveObject = "volt.tar.gz"

// ReadmeObject and IconObject are the side-asset object names.
const (
	ReadmeObject = "readme"
	IconObject   = "icon"
)

const readmeFileName = "README.md"

// PluginStore is the slice of the repository layer the pipeline commits
// through.
type PluginStore interface {
	Publish(ctx context.Context, accountID string, meta repositories.PluginMeta, versionNum string) (*models.Plugin, *models.Version, error)
}

// Pipeline runs the publish flow for uploaded plugin archives.
type Pipeline struct {
	store          storage.Backend
	plugins        PluginStore
	maxArchiveSize int64
}

// NewPipeline creates a publish pipeline.
func NewPipeline(store storage.Backend, plugins PluginStore, maxArchiveSize int64) *Pipeline {
	return &Pipeline{
		store:          store,
		plugins:        plugins,
		maxArchiveSize: maxArchiveSize,
	}
}

// ObjectKey builds the storage key for one object of a plugin version.
func ObjectKey(login, name, version, object string) string {
	return path.Join(login, name, version, object)
}

// Run executes the pipeline for one uploaded archive. The returned *Error
// carries the HTTP status and the message shown to the publisher; temp
// state is removed before Run returns.
func (p *Pipeline) Run(ctx context.Context, account *models.Account, body io.Reader) (*models.Plugin, *models.Version, *Error) {
	start := time.Now()
	plugin, version, perr := p.run(ctx, account, body)
	telemetry.PublishDuration.Observe(time.Since(start).Seconds())
	if perr != nil {
		telemetry.PublishesTotal.WithLabelValues(perr.Stage).Inc()
		return nil, nil, perr
	}
	telemetry.PublishesTotal.WithLabelValues("ok").Inc()
	return plugin, version, nil
}

func (p *Pipeline) run(ctx context.Context, account *models.Account, body io.Reader) (*models.Plugin, *models.Version, *Error) {
	workDir, err := os.MkdirTemp("", "plugin-publish-*")
	if err != nil {
		return nil, nil, internal("tempdir", "failed to allocate working directory")
	}
	defer os.RemoveAll(workDir)

	archivePath := filepath.Join(workDir, "upload.tar.gz")
	if perr := p.receiveArchive(archivePath, body); perr != nil {
		return nil, nil, perr
	}

	extractDir := filepath.Join(workDir, "extracted")
	if err := validation.ExtractArchive(archivePath, extractDir); err != nil {
		return nil, nil, badRequest("extract", err.Error())
	}

	manifestData, err := os.ReadFile(filepath.Join(extractDir, manifest.FileName))
	if err != nil {
		return nil, nil, badRequest("manifest", "volt.toml not found at archive root")
	}

	m, err := manifest.Parse(manifestData)
	if err != nil {
		return nil, nil, badRequest("manifest", err.Error())
	}

	// The manifest author is untrusted; the publishing account owns the
	// plugin regardless of what the archive claims.
	m.Author = account.GhLogin

	if _, err := validation.ParseVersion(m.Version); err != nil {
		return nil, nil, badRequest("semver", err.Error())
	}

	assets, perr := validateKindAssets(extractDir, m)
	if perr != nil {
		return nil, nil, perr
	}

	stagingDir := filepath.Join(workDir, "staging")
	readmePath, iconPaths, perr := stage(extractDir, stagingDir, m, assets)
	if perr != nil {
		return nil, nil, perr
	}

	if perr := p.uploadSideAssets(ctx, account.GhLogin, m, readmePath, iconPaths); perr != nil {
		return nil, nil, perr
	}

	repackedPath := filepath.Join(workDir, ArchiveObject)
	if err := validation.PackArchive(stagingDir, repackedPath); err != nil {
		return nil, nil, internal("repackage", "failed to repackage archive")
	}

	if perr := p.uploadArchive(ctx, account.GhLogin, m, repackedPath); perr != nil {
		return nil, nil, perr
	}

	var repository *string
	if m.Repository != "" {
		repository = &m.Repository
	}
	plugin, version, err := p.plugins.Publish(ctx, account.ID, repositories.PluginMeta{
		Name:        m.Name,
		DisplayName: m.DisplayName,
		Author:      m.Author,
		Description: m.Description,
		Repository:  repository,
		Wasm:        m.Kind() == manifest.KindWasm,
	}, m.Version)
	if err != nil {
		slog.Error("publish commit failed", "plugin", m.Name, "version", m.Version, "error", err)
		return nil, nil, internal("commit", "failed to record plugin version")
	}

	slog.Info("plugin published",
		"account", account.GhLogin,
		"plugin", plugin.Name,
		"version", version.Num,
		"kind", m.Kind().String(),
	)

	return plugin, version, nil
}

// receiveArchive streams the request body to disk, enforcing the size cap
// without buffering the archive in memory.
func (p *Pipeline) receiveArchive(dest string, body io.Reader) *Error {
	f, err := os.Create(dest)
	if err != nil {
		return internal("receive", "failed to create upload file")
	}
	defer f.Close()

	written, err := io.Copy(f, io.LimitReader(body, p.maxArchiveSize+1))
	if err != nil {
		return internal("receive", "failed to read upload")
	}
	if written == 0 {
		return badRequest("receive", "empty archive")
	}
	if written > p.maxArchiveSize {
		return badRequest("receive", fmt.Sprintf("archive exceeds the maximum size of %d bytes", p.maxArchiveSize))
	}

	return nil
}

// validateKindAssets checks that every asset the manifest references exists
// in the extracted archive, returning the archive-relative paths to stage.
func validateKindAssets(extractDir string, m *manifest.Manifest) ([]string, *Error) {
	var assets []string

	exists := func(rel string) bool {
		info, err := os.Stat(filepath.Join(extractDir, filepath.FromSlash(rel)))
		return err == nil && info.Mode().IsRegular()
	}

	switch m.Kind() {
	case manifest.KindWasm:
		if !exists(m.Wasm) {
			return nil, badRequest("assets", fmt.Sprintf("wasm file %s not found in archive", m.Wasm))
		}
		assets = append(assets, m.Wasm)

	case manifest.KindColorThemes:
		for _, theme := range m.ColorThemes {
			if !exists(theme) {
				return nil, badRequest("assets", fmt.Sprintf("color theme %s not found in archive", theme))
			}
			assets = append(assets, theme)
		}

	case manifest.KindIconThemes:
		seen := make(map[string]struct{})
		for _, configRel := range m.IconThemes {
			data, err := os.ReadFile(filepath.Join(extractDir, filepath.FromSlash(configRel)))
			if err != nil {
				return nil, badRequest("assets", fmt.Sprintf("icon theme %s not found in archive", configRel))
			}
			cfg, err := manifest.ParseIconTheme(data)
			if err != nil {
				return nil, badRequest("assets", fmt.Sprintf("icon theme %s format invalid", configRel))
			}
			assets = append(assets, configRel)

			// Icon paths resolve relative to the theme config's directory.
			themeDir := path.Dir(configRel)
			for _, icon := range cfg.IconPaths() {
				rel := path.Join(themeDir, icon)
				if _, ok := seen[rel]; ok {
					continue
				}
				if !exists(rel) {
					return nil, badRequest("assets", fmt.Sprintf("icon %s not found in archive", icon))
				}
				seen[rel] = struct{}{}
				assets = append(assets, rel)
			}
		}
	}

	return assets, nil
}

// stage copies the manifest and validated assets into a fresh staging
// directory, preserving relative layout so the repacked archive resolves the
// same paths. README.md and the manifest icon ride along when present.
// Returns the staged readme path and the icon files to upload to the icon
// object.
func stage(extractDir, stagingDir string, m *manifest.Manifest, assets []string) (readmePath string, iconPaths []string, perr *Error) {
	if err := os.MkdirAll(stagingDir, 0750); err != nil {
		return "", nil, internal("stage", "failed to create staging directory")
	}

	copyRel := func(rel string) *Error {
		src := filepath.Join(extractDir, filepath.FromSlash(rel))
		dst := filepath.Join(stagingDir, filepath.FromSlash(rel))
		if err := copyFile(src, dst); err != nil {
			return internal("stage", fmt.Sprintf("failed to stage %s", rel))
		}
		return nil
	}

	if perr := copyRel(manifest.FileName); perr != nil {
		return "", nil, perr
	}
	for _, rel := range assets {
		if perr := copyRel(rel); perr != nil {
			return "", nil, perr
		}
	}

	if _, err := os.Stat(filepath.Join(extractDir, readmeFileName)); err == nil {
		if perr := copyRel(readmeFileName); perr != nil {
			return "", nil, perr
		}
		readmePath = filepath.Join(stagingDir, readmeFileName)
	}

	if m.Icon != "" {
		if _, err := os.Stat(filepath.Join(extractDir, filepath.FromSlash(m.Icon))); err != nil {
			return "", nil, badRequest("stage", fmt.Sprintf("icon %s not found in archive", m.Icon))
		}
		if perr := copyRel(m.Icon); perr != nil {
			return "", nil, perr
		}
		iconPaths = append(iconPaths, filepath.Join(stagingDir, filepath.FromSlash(m.Icon)))
	}

	// Icon theme plugins publish their theme icons under the icon object
	// as well; uploads happen in order, so the last one wins.
	if m.Kind() == manifest.KindIconThemes {
		configs := make(map[string]struct{}, len(m.IconThemes))
		for _, rel := range m.IconThemes {
			configs[rel] = struct{}{}
		}
		for _, rel := range assets {
			if _, ok := configs[rel]; ok {
				continue
			}
			iconPaths = append(iconPaths, filepath.Join(stagingDir, filepath.FromSlash(rel)))
		}
	}

	return readmePath, iconPaths, nil
}

func (p *Pipeline) uploadSideAssets(ctx context.Context, login string, m *manifest.Manifest, readmePath string, iconPaths []string) *Error {
	if readmePath != "" {
		if _, perr := p.uploadFile(ctx, readmePath, ObjectKey(login, m.Name, m.Version, ReadmeObject), "text/markdown"); perr != nil {
			return perr
		}
	}

	for _, iconPath := range iconPaths {
		contentType := IconContentType(iconPath)
		if _, perr := p.uploadFile(ctx, iconPath, ObjectKey(login, m.Name, m.Version, IconObject), contentType); perr != nil {
			return perr
		}
	}

	return nil
}

// uploadArchive stores the repackaged archive and verifies the backend's
// reported checksum against the bytes on disk.
func (p *Pipeline) uploadArchive(ctx context.Context, login string, m *manifest.Manifest, archivePath string) *Error {
	want, err := checksum.File(archivePath)
	if err != nil {
		return internal("upload", "failed to checksum archive")
	}

	key := ObjectKey(login, m.Name, m.Version, ArchiveObject)
	result, perr := p.uploadFile(ctx, archivePath, key, "application/gzip")
	if perr != nil {
		return perr
	}

	if result.Checksum != "" && result.Checksum != want {
		slog.Error("archive checksum mismatch", "key", key, "want", want, "got", result.Checksum)
		return internal("upload", "archive checksum mismatch after upload")
	}

	return nil
}

func (p *Pipeline) uploadFile(ctx context.Context, localPath, key, contentType string) (*storage.UploadResult, *Error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, internal("upload", fmt.Sprintf("failed to open %s", filepath.Base(localPath)))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, internal("upload", "failed to stat upload file")
	}

	result, err := p.store.Upload(ctx, key, f, info.Size(), contentType)
	if err != nil {
		slog.Error("artifact upload failed", "key", key, "error", err)
		return nil, internal("upload", "failed to store artifact")
	}

	return result, nil
}

// IconContentType maps an icon file extension to its content type. Unknown
// extensions fall back to the generic image type.
func IconContentType(name string) string {
	switch strings.ToLower(path.Ext(filepath.ToSlash(name))) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".svg":
		return "image/svg+xml"
	default:
		return "image/*"
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
