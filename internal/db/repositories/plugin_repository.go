// plugin_repository.go implements PluginRepository, providing database
// queries for plugin and version publication, search, download counting,
// and yank state management.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
)

// Search result page sizes are clamped to this ceiling regardless of what
// the client asks for.
const maxSearchLimit = 100

// PluginRepository handles plugin and version database operations. Writes go
// to the primary pool; search and lookup queries run against the read pool.
type PluginRepository struct {
	write *sqlx.DB
	read  *sqlx.DB
}

// NewPluginRepository creates a new PluginRepository.
func NewPluginRepository(write, read *sqlx.DB) *PluginRepository {
	return &PluginRepository{write: write, read: read}
}

// PluginMeta carries the manifest fields persisted onto the plugin row at
// publish time.
type PluginMeta struct {
	Name        string
	DisplayName string
	Author      string
	Description string
	Repository  *string
	Wasm        bool
}

// Publish records a version in a single transaction: the plugin row is
// created or refreshed with the manifest metadata, then the version row is
// upserted. Re-publishing an existing version number succeeds and refreshes
// the row, so a publish that failed after uploading artifacts can simply be
// retried.
func (r *PluginRepository) Publish(ctx context.Context, accountID string, meta PluginMeta, versionNum string) (*models.Plugin, *models.Version, error) {
	tx, err := r.write.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin publish transaction: %w", err)
	}
	defer tx.Rollback()

	pluginQuery := `
		INSERT INTO plugins (account_id, name, display_name, author, description, repository, wasm)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, name) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    author = EXCLUDED.author,
		    description = EXCLUDED.description,
		    repository = EXCLUDED.repository,
		    wasm = EXCLUDED.wasm,
		    updated_at = NOW()
		RETURNING id, account_id, name, display_name, author, description, repository, wasm, downloads, created_at, updated_at
	`

	plugin := &models.Plugin{}
	err = tx.GetContext(ctx, plugin, pluginQuery,
		accountID,
		meta.Name,
		meta.DisplayName,
		meta.Author,
		meta.Description,
		meta.Repository,
		meta.Wasm,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upsert plugin: %w", err)
	}

	versionQuery := `
		INSERT INTO versions (plugin_id, num)
		VALUES ($1, $2)
		ON CONFLICT (plugin_id, num) DO UPDATE
		SET updated_at = NOW()
		RETURNING id, plugin_id, num, yanked, downloads, created_at, updated_at
	`

	version := &models.Version{}
	err = tx.GetContext(ctx, version, versionQuery, plugin.ID, versionNum)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit publish transaction: %w", err)
	}

	return plugin, version, nil
}

// FindByAuthorAndName retrieves a plugin by the owner's GitHub login and the
// plugin name.
func (r *PluginRepository) FindByAuthorAndName(ctx context.Context, author, name string) (*models.Plugin, error) {
	query := `
		SELECT p.id, p.account_id, p.name, p.display_name, p.author, p.description, p.repository, p.wasm, p.downloads, p.created_at, p.updated_at
		FROM plugins p
		JOIN accounts a ON p.account_id = a.id
		WHERE a.gh_login = $1 AND p.name = $2
	`

	plugin := &models.Plugin{}
	err := r.read.GetContext(ctx, plugin, query, author, name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return plugin, nil
}

// ExistsByName reports whether any account owns a plugin with the name.
// Used to distinguish "not yours" from "does not exist" on yank requests.
func (r *PluginRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.read.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM plugins WHERE name = $1)`, name)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// FindVersion retrieves a single version row of a plugin.
func (r *PluginRepository) FindVersion(ctx context.Context, pluginID, num string) (*models.Version, error) {
	query := `
		SELECT id, plugin_id, num, yanked, downloads, created_at, updated_at
		FROM versions
		WHERE plugin_id = $1 AND num = $2
	`

	version := &models.Version{}
	err := r.read.GetContext(ctx, version, query, pluginID, num)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return version, nil
}

// ListVersions returns every version of a plugin, newest insert first.
func (r *PluginRepository) ListVersions(ctx context.Context, pluginID string) ([]*models.Version, error) {
	query := `
		SELECT id, plugin_id, num, yanked, downloads, created_at, updated_at
		FROM versions
		WHERE plugin_id = $1
		ORDER BY created_at DESC
	`

	versions := make([]*models.Version, 0)
	err := r.read.SelectContext(ctx, &versions, query, pluginID)
	if err != nil {
		return nil, err
	}

	return versions, nil
}

// SetYanked sets the yank state of a version. The account scope restricts
// the update to plugins the caller owns; returns false when no matching
// version exists or the caller is not the owner.
func (r *PluginRepository) SetYanked(ctx context.Context, accountID, name, num string, yanked bool) (bool, error) {
	query := `
		UPDATE versions v
		SET yanked = $4, updated_at = NOW()
		FROM plugins p
		WHERE v.plugin_id = p.id
		  AND p.account_id = $1
		  AND p.name = $2
		  AND v.num = $3
	`

	result, err := r.write.ExecContext(ctx, query, accountID, name, num, yanked)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// IncrementDownloads bumps the download counters of both the version and its
// parent plugin.
func (r *PluginRepository) IncrementDownloads(ctx context.Context, pluginID, versionID string) error {
	tx, err := r.write.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin download transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE versions SET downloads = downloads + 1 WHERE id = $1`, versionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE plugins SET downloads = downloads + 1 WHERE id = $1`, pluginID); err != nil {
		return err
	}

	return tx.Commit()
}

// SearchParams are the normalised inputs of a plugin search.
type SearchParams struct {
	Query  string
	Sort   string // downloads, created, updated
	Limit  int
	Offset int
}

// SearchResult is one row of a search response with the owner login joined
// in.
type SearchResult struct {
	models.Plugin
	GhLogin string `db:"gh_login" json:"author_login"`
}

// Search returns plugins matching the query text along with the total match
// count. Matching is a case-insensitive substring test over name, display
// name, and description, restricted to plugins with at least one non-yanked
// version. An empty query matches everything.
func (r *PluginRepository) Search(ctx context.Context, params SearchParams) ([]*SearchResult, int64, error) {
	limit := params.Limit
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	var orderBy string
	switch params.Sort {
	case "created":
		orderBy = "p.created_at DESC"
	case "updated":
		orderBy = "p.updated_at DESC"
	default:
		orderBy = "p.downloads DESC"
	}

	where := `
		EXISTS (SELECT 1 FROM versions v WHERE v.plugin_id = p.id AND NOT v.yanked)
	`
	args := []interface{}{}
	if params.Query != "" {
		where += ` AND (p.name ILIKE $1 OR p.display_name ILIKE $1 OR p.description ILIKE $1)`
		args = append(args, "%"+escapeLike(params.Query)+"%")
	}

	countQuery := `SELECT COUNT(*) FROM plugins p WHERE ` + where
	var total int64
	if err := r.read.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.account_id, p.name, p.display_name, p.author, p.description, p.repository, p.wasm, p.downloads, p.created_at, p.updated_at,
		       a.gh_login
		FROM plugins p
		JOIN accounts a ON p.account_id = a.id
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	results := make([]*SearchResult, 0)
	if err := r.read.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

// escapeLike neutralises LIKE metacharacters in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
