package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

// fragmentStore implements the fragment, relationship and API metadata ports.
type fragmentStore struct {
	store *Store
}

var (
	_ driven.FragmentStore     = (*fragmentStore)(nil)
	_ driven.RelationshipStore = (*fragmentStore)(nil)
	_ driven.APIMetadataStore  = (*fragmentStore)(nil)
)

const fragmentColumns = `id, api_id, type, content, metadata, embedding,
	usage_count, last_used, created_at, updated_at`

// heatOrder is the ordering shared by Find and Search.
const heatOrder = `ORDER BY usage_count DESC, updated_at DESC, id ASC`

// Save upserts a fragment. On conflict only content, metadata, embedding and
// updated_at change; usage and created_at are kept.
func (s *fragmentStore) Save(ctx context.Context, fragment *domain.Fragment) error {
	if fragment == nil || fragment.ID == "" {
		return domain.ErrInvalidInput
	}

	content, err := json.Marshal(fragment.Content)
	if err != nil {
		return fmt.Errorf("marshalling content: %w", err)
	}
	metadata, err := json.Marshal(fragment.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO fragments (`+fragmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`, fragment.ID, fragment.APIID, string(fragment.Type), string(content), string(metadata),
		float32SliceToBytes(fragment.Embedding), fragment.UsageCount,
		nullableNanos(fragment.LastUsed), nanos(fragment.CreatedAt), nanos(fragment.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving fragment: %w", err)
	}
	return nil
}

// Get retrieves a fragment by ID.
func (s *fragmentStore) Get(ctx context.Context, id string) (*domain.Fragment, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+fragmentColumns+` FROM fragments WHERE id = ?`, id)

	f, err := scanFragment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Find returns fragments matching the query, hottest first.
func (s *fragmentStore) Find(ctx context.Context, query domain.FragmentQuery) ([]domain.Fragment, error) {
	var (
		where []string
		args  []any
	)
	if query.APIID != "" {
		where = append(where, "api_id = ?")
		args = append(args, query.APIID)
	}
	if len(query.Types) > 0 {
		placeholders := make([]string, len(query.Types))
		for i, t := range query.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, "type IN ("+strings.Join(placeholders, ", ")+")")
	}

	stmt := `SELECT ` + fragmentColumns + ` FROM fragments`
	if len(where) > 0 {
		stmt += ` WHERE ` + strings.Join(where, " AND ")
	}
	stmt += ` ` + heatOrder + ` LIMIT ?`
	args = append(args, query.EffectiveLimit())

	return s.queryFragments(ctx, stmt, args...)
}

// Search returns fragments of one API whose metadata JSON or type contains
// keyword, case-insensitively.
func (s *fragmentStore) Search(ctx context.Context, apiID, keyword string, limit int) ([]domain.Fragment, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	pattern := "%" + escapeLike(strings.ToLower(keyword)) + "%"

	return s.queryFragments(ctx, `
		SELECT `+fragmentColumns+` FROM fragments
		WHERE api_id = ?
			AND (LOWER(metadata) LIKE ? ESCAPE '\' OR LOWER(type) LIKE ? ESCAPE '\')
		`+heatOrder+` LIMIT ?
	`, apiID, pattern, pattern, limit)
}

// IncrementUsage adds one to the usage counter in a single statement.
func (s *fragmentStore) IncrementUsage(ctx context.Context, id string, at time.Time) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE fragments SET usage_count = usage_count + 1, last_used = ? WHERE id = ?
	`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("incrementing usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("incrementing usage: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteUnused removes never-used fragments whose last_used is unset or
// before cutoff.
func (s *fragmentStore) DeleteUnused(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.store.db.ExecContext(ctx, `
		DELETE FROM fragments
		WHERE usage_count = 0 AND (last_used IS NULL OR last_used < ?)
	`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("deleting unused fragments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting unused fragments: %w", err)
	}
	return int(n), nil
}

// Stats aggregates counts and usage for one API.
func (s *fragmentStore) Stats(ctx context.Context, apiID string) (*domain.APIStats, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT type, COUNT(*), COALESCE(SUM(usage_count), 0), COALESCE(MAX(last_used), 0)
		FROM fragments WHERE api_id = ?
		GROUP BY type
	`, apiID)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	defer rows.Close()

	stats := domain.EmptyAPIStats(apiID)
	for rows.Next() {
		var (
			fragmentType     string
			count, usage     int
			lastUsedUnixNano int64
		)
		if err := rows.Scan(&fragmentType, &count, &usage, &lastUsedUnixNano); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		stats.FragmentStats[domain.FragmentType(fragmentType)] = count
		stats.TotalFragments += count
		stats.TotalUsage += usage
		if lastUsed := fromNanos(lastUsedUnixNano); lastUsed.After(stats.LastUsed) {
			stats.LastUsed = lastUsed
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stats: %w", err)
	}

	if stats.TotalFragments > 0 {
		stats.AverageUsage = float64(stats.TotalUsage) / float64(stats.TotalFragments)
	}
	return &stats, nil
}

// SaveRelationship upserts a link. Both fragments must exist.
func (s *fragmentStore) SaveRelationship(ctx context.Context, rel domain.Relationship) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO fragment_relationships (parent_id, child_id, relationship_type)
		VALUES (?, ?, ?)
		ON CONFLICT(parent_id, child_id) DO UPDATE SET
			relationship_type = excluded.relationship_type
	`, rel.ParentID, rel.ChildID, rel.Type)
	if err != nil {
		return fmt.Errorf("saving relationship: %w", err)
	}
	return nil
}

// ListRelationships returns links where the fragment is parent or child.
func (s *fragmentStore) ListRelationships(ctx context.Context, fragmentID string) ([]domain.Relationship, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT parent_id, child_id, relationship_type
		FROM fragment_relationships
		WHERE parent_id = ? OR child_id = ?
		ORDER BY parent_id, child_id
	`, fragmentID, fragmentID)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	result := []domain.Relationship{}
	for rows.Next() {
		var rel domain.Relationship
		if err := rows.Scan(&rel.ParentID, &rel.ChildID, &rel.Type); err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		result = append(result, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relationships: %w", err)
	}
	return result, nil
}

const apiMetadataColumns = `api_id, spec_location, last_fetched, etag, version,
	fragment_count, total_usage`

// SaveAPIMetadata creates or replaces the metadata for an API.
func (s *fragmentStore) SaveAPIMetadata(ctx context.Context, meta domain.APIMetadata) error {
	if meta.APIID == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO api_metadata (`+apiMetadataColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(api_id) DO UPDATE SET
			spec_location = excluded.spec_location,
			last_fetched = excluded.last_fetched,
			etag = excluded.etag,
			version = excluded.version,
			fragment_count = excluded.fragment_count,
			total_usage = excluded.total_usage
	`, meta.APIID, meta.SpecLocation, nullableNanos(meta.LastFetched), meta.ETag,
		meta.Version, meta.FragmentCount, meta.TotalUsage)
	if err != nil {
		return fmt.Errorf("saving api metadata: %w", err)
	}
	return nil
}

// GetAPIMetadata retrieves metadata for an API.
func (s *fragmentStore) GetAPIMetadata(ctx context.Context, apiID string) (*domain.APIMetadata, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+apiMetadataColumns+` FROM api_metadata WHERE api_id = ?`, apiID)

	meta, err := scanAPIMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// ListAPIMetadata returns metadata for every known API ordered by API id.
func (s *fragmentStore) ListAPIMetadata(ctx context.Context) ([]domain.APIMetadata, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+apiMetadataColumns+` FROM api_metadata ORDER BY api_id`)
	if err != nil {
		return nil, fmt.Errorf("querying api metadata: %w", err)
	}
	defer rows.Close()

	result := []domain.APIMetadata{}
	for rows.Next() {
		meta, err := scanAPIMetadata(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api metadata: %w", err)
	}
	return result, nil
}

func (s *fragmentStore) queryFragments(ctx context.Context, stmt string, args ...any) ([]domain.Fragment, error) {
	rows, err := s.store.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying fragments: %w", err)
	}
	defer rows.Close()

	result := []domain.Fragment{}
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fragments: %w", err)
	}
	return result, nil
}

// scanFragment scans one fragment row. sql.ErrNoRows is returned unwrapped.
func scanFragment(row rowScanner) (*domain.Fragment, error) {
	var (
		f                    domain.Fragment
		fragmentType         string
		content, metadata    string
		embedding            []byte
		lastUsed             sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&f.ID, &f.APIID, &fragmentType, &content, &metadata, &embedding,
		&f.UsageCount, &lastUsed, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning fragment: %w", err)
	}

	f.Type = domain.FragmentType(fragmentType)
	if err := json.Unmarshal([]byte(content), &f.Content); err != nil {
		return nil, fmt.Errorf("unmarshalling content of %s: %w", f.ID, err)
	}
	if err := json.Unmarshal([]byte(metadata), &f.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata of %s: %w", f.ID, err)
	}
	f.Embedding = bytesToFloat32Slice(embedding)
	f.LastUsed = fromNullableNanos(lastUsed)
	f.CreatedAt = fromNanos(createdAt)
	f.UpdatedAt = fromNanos(updatedAt)

	return &f, nil
}

func scanAPIMetadata(row rowScanner) (*domain.APIMetadata, error) {
	var (
		meta        domain.APIMetadata
		lastFetched sql.NullInt64
	)
	err := row.Scan(&meta.APIID, &meta.SpecLocation, &lastFetched, &meta.ETag,
		&meta.Version, &meta.FragmentCount, &meta.TotalUsage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning api metadata: %w", err)
	}
	meta.LastFetched = fromNullableNanos(lastFetched)
	return &meta, nil
}

// escapeLike escapes LIKE wildcards so the keyword matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
