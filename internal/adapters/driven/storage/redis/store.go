package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.FragmentStore     = (*Store)(nil)
	_ driven.RelationshipStore = (*Store)(nil)
	_ driven.APIMetadataStore  = (*Store)(nil)
)

// DefaultPrefix namespaces keys when Config.Prefix is empty.
const DefaultPrefix = "specfrag"

// Hash fields of a fragment.
const (
	fieldID         = "id"
	fieldAPIID      = "api_id"
	fieldType       = "type"
	fieldContent    = "content"
	fieldMetadata   = "metadata"
	fieldEmbedding  = "embedding"
	fieldUsageCount = "usage_count"
	fieldLastUsed   = "last_used"
	fieldCreatedAt  = "created_at"
	fieldUpdatedAt  = "updated_at"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces every key. Empty means DefaultPrefix.
	Prefix string

	// PingTimeout bounds the connection check in NewStore. Zero means 5s.
	PingTimeout time.Duration
}

// incrementScript bumps usage only for fragments that still exist.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HINCRBY', KEYS[1], 'usage_count', 1)
redis.call('HSET', KEYS[1], 'last_used', ARGV[1])
return 1
`)

// deleteUnusedScript deletes a fragment only if it is unchanged since it was
// selected: usage still zero and last_used still ARGV[1].
var deleteUnusedScript = redis.NewScript(`
local h = redis.call('HMGET', KEYS[1], 'usage_count', 'last_used')
if h[1] ~= '0' or h[2] ~= ARGV[1] then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[2])
redis.call('SREM', KEYS[3], ARGV[2])
return 1
`)

// Store is a Redis implementation of the fragment, relationship and API
// metadata ports.
type Store struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// NewStore connects to Redis and verifies the connection.
func NewStore(cfg Config, log *zap.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w: %w", cfg.Addr, domain.ErrStorageUnavailable, err)
	}

	s := NewStoreWithClient(client, cfg.Prefix, log)
	s.logger.Info("redis fragment store connected",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("prefix", s.prefix),
	)
	return s, nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client redis.UniversalClient, prefix string, log *zap.Logger) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		client: client,
		prefix: prefix,
		logger: log.With(zap.String("component", "redis_store")),
	}
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Key helpers.

func (s *Store) fragmentKey(id string) string  { return s.prefix + ":fragment:" + id }
func (s *Store) relationsKey(id string) string { return s.prefix + ":fragment:" + id + ":relations" }
func (s *Store) allFragmentsKey() string       { return s.prefix + ":fragments" }
func (s *Store) apiFragmentsKey(api string) string {
	return s.prefix + ":api:" + api + ":fragments"
}
func (s *Store) apiMetaKey(api string) string { return s.prefix + ":api:" + api + ":meta" }
func (s *Store) apisKey() string              { return s.prefix + ":apis" }

// Save upserts a fragment. Identity, usage and created_at fields are only
// written when absent, so an update keeps them.
func (s *Store) Save(ctx context.Context, fragment *domain.Fragment) error {
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

	key := s.fragmentKey(fragment.ID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldID, fragment.ID)
		pipe.HSetNX(ctx, key, fieldAPIID, fragment.APIID)
		pipe.HSetNX(ctx, key, fieldType, string(fragment.Type))
		pipe.HSetNX(ctx, key, fieldUsageCount, fragment.UsageCount)
		pipe.HSetNX(ctx, key, fieldLastUsed, nanos(fragment.LastUsed))
		pipe.HSetNX(ctx, key, fieldCreatedAt, nanos(fragment.CreatedAt))
		pipe.HSet(ctx, key,
			fieldContent, string(content),
			fieldMetadata, string(metadata),
			fieldEmbedding, float32sToBytes(fragment.Embedding),
			fieldUpdatedAt, nanos(fragment.UpdatedAt),
		)
		pipe.SAdd(ctx, s.allFragmentsKey(), fragment.ID)
		pipe.SAdd(ctx, s.apiFragmentsKey(fragment.APIID), fragment.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving fragment: %w", err)
	}
	return nil
}

// Get retrieves a fragment by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.Fragment, error) {
	fields, err := s.client.HGetAll(ctx, s.fragmentKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting fragment: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return decodeFragment(fields)
}

// Find returns fragments matching the query, hottest first.
func (s *Store) Find(ctx context.Context, query domain.FragmentQuery) ([]domain.Fragment, error) {
	index := s.allFragmentsKey()
	if query.APIID != "" {
		index = s.apiFragmentsKey(query.APIID)
	}

	fragments, err := s.loadIndex(ctx, index)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Fragment, 0, len(fragments))
	for _, f := range fragments {
		if query.MatchesType(f.Type) {
			result = append(result, f)
		}
	}
	sortByHeat(result)
	if limit := query.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Search returns fragments of one API whose metadata JSON or type contains
// keyword, case-insensitively.
func (s *Store) Search(ctx context.Context, apiID, keyword string, limit int) ([]domain.Fragment, error) {
	fragments, err := s.loadIndex(ctx, s.apiFragmentsKey(apiID))
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(keyword)
	result := []domain.Fragment{}
	for _, f := range fragments {
		blob, err := json.Marshal(f.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshalling metadata: %w", err)
		}
		if strings.Contains(strings.ToLower(string(blob)), needle) ||
			strings.Contains(strings.ToLower(string(f.Type)), needle) {
			result = append(result, f)
		}
	}
	sortByHeat(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// IncrementUsage atomically adds one to the usage counter and sets last_used.
func (s *Store) IncrementUsage(ctx context.Context, id string, at time.Time) error {
	n, err := incrementScript.Run(ctx, s.client, []string{s.fragmentKey(id)}, at.UnixNano()).Int()
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
func (s *Store) DeleteUnused(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.client.SMembers(ctx, s.allFragmentsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("listing fragments: %w", err)
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, s.fragmentKey(id), fieldUsageCount, fieldLastUsed, fieldAPIID)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reading usage: %w", err)
	}

	limit := cutoff.UnixNano()
	deleted := 0
	for i, id := range ids {
		vals := cmds[i].Val()
		usage, _ := vals[0].(string)
		lastUsed, _ := vals[1].(string)
		apiID, _ := vals[2].(string)
		if vals[0] == nil {
			// Hash is gone; drop the stale index entry.
			s.client.SRem(ctx, s.allFragmentsKey(), id)
			continue
		}
		if usage != "0" {
			continue
		}
		if lu, _ := strconv.ParseInt(lastUsed, 10, 64); lu != 0 && lu >= limit {
			continue
		}

		keys := []string{s.fragmentKey(id), s.allFragmentsKey(), s.apiFragmentsKey(apiID)}
		n, err := deleteUnusedScript.Run(ctx, s.client, keys, lastUsed, id).Int()
		if err != nil {
			return deleted, fmt.Errorf("deleting fragment %s: %w", id, err)
		}
		if n == 1 {
			deleted++
			s.dropRelations(ctx, id)
		}
	}
	return deleted, nil
}

// Stats aggregates counts and usage for one API.
func (s *Store) Stats(ctx context.Context, apiID string) (*domain.APIStats, error) {
	ids, err := s.client.SMembers(ctx, s.apiFragmentsKey(apiID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing fragments: %w", err)
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, s.fragmentKey(id), fieldType, fieldUsageCount, fieldLastUsed)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	stats := domain.EmptyAPIStats(apiID)
	for _, cmd := range cmds {
		vals := cmd.Val()
		fragmentType, ok := vals[0].(string)
		if !ok {
			continue
		}
		usage, _ := vals[1].(string)
		lastUsed, _ := vals[2].(string)

		stats.TotalFragments++
		stats.FragmentStats[domain.FragmentType(fragmentType)]++
		n, _ := strconv.Atoi(usage)
		stats.TotalUsage += n
		if t := fromNanos(lastUsed); t.After(stats.LastUsed) {
			stats.LastUsed = t
		}
	}
	if stats.TotalFragments > 0 {
		stats.AverageUsage = float64(stats.TotalUsage) / float64(stats.TotalFragments)
	}
	return &stats, nil
}

// SaveRelationship upserts a link. The link is indexed under both ends.
func (s *Store) SaveRelationship(ctx context.Context, rel domain.Relationship) error {
	if rel.ParentID == "" || rel.ChildID == "" {
		return domain.ErrInvalidInput
	}
	field := rel.ParentID + "\t" + rel.ChildID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.relationsKey(rel.ParentID), field, rel.Type)
		pipe.HSet(ctx, s.relationsKey(rel.ChildID), field, rel.Type)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving relationship: %w", err)
	}
	return nil
}

// ListRelationships returns links where the fragment is parent or child.
func (s *Store) ListRelationships(ctx context.Context, fragmentID string) ([]domain.Relationship, error) {
	fields, err := s.client.HGetAll(ctx, s.relationsKey(fragmentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing relationships: %w", err)
	}

	result := make([]domain.Relationship, 0, len(fields))
	for field, relType := range fields {
		parent, child, ok := strings.Cut(field, "\t")
		if !ok {
			continue
		}
		result = append(result, domain.Relationship{ParentID: parent, ChildID: child, Type: relType})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ParentID != result[j].ParentID {
			return result[i].ParentID < result[j].ParentID
		}
		return result[i].ChildID < result[j].ChildID
	})
	return result, nil
}

// dropRelations removes every link touching a deleted fragment.
func (s *Store) dropRelations(ctx context.Context, id string) {
	fields, err := s.client.HGetAll(ctx, s.relationsKey(id)).Result()
	if err != nil {
		s.logger.Warn("reading relationships of deleted fragment", zap.String("id", id), zap.Error(err))
		return
	}
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for field := range fields {
			parent, child, _ := strings.Cut(field, "\t")
			other := parent
			if other == id {
				other = child
			}
			pipe.HDel(ctx, s.relationsKey(other), field)
		}
		pipe.Del(ctx, s.relationsKey(id))
		return nil
	})
	if err != nil {
		s.logger.Warn("dropping relationships of deleted fragment", zap.String("id", id), zap.Error(err))
	}
}

// SaveAPIMetadata creates or replaces the metadata for an API.
func (s *Store) SaveAPIMetadata(ctx context.Context, meta domain.APIMetadata) error {
	if meta.APIID == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.apiMetaKey(meta.APIID),
			"api_id", meta.APIID,
			"spec_location", meta.SpecLocation,
			"last_fetched", nanos(meta.LastFetched),
			"etag", meta.ETag,
			"version", meta.Version,
			"fragment_count", meta.FragmentCount,
			"total_usage", meta.TotalUsage,
		)
		pipe.SAdd(ctx, s.apisKey(), meta.APIID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving api metadata: %w", err)
	}
	return nil
}

// GetAPIMetadata retrieves metadata for an API.
func (s *Store) GetAPIMetadata(ctx context.Context, apiID string) (*domain.APIMetadata, error) {
	fields, err := s.client.HGetAll(ctx, s.apiMetaKey(apiID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting api metadata: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	meta := decodeAPIMetadata(fields)
	return &meta, nil
}

// ListAPIMetadata returns metadata for every known API ordered by API id.
func (s *Store) ListAPIMetadata(ctx context.Context) ([]domain.APIMetadata, error) {
	ids, err := s.client.SMembers(ctx, s.apisKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("listing apis: %w", err)
	}
	sort.Strings(ids)

	result := make([]domain.APIMetadata, 0, len(ids))
	for _, id := range ids {
		meta, err := s.GetAPIMetadata(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, *meta)
	}
	return result, nil
}

// loadIndex fetches every fragment listed in an index set. Entries whose
// hash has gone are skipped; undecodable hashes are logged and skipped.
func (s *Store) loadIndex(ctx context.Context, index string) ([]domain.Fragment, error) {
	ids, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, fmt.Errorf("listing fragments: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.fragmentKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading fragments: %w", err)
	}

	fragments := make([]domain.Fragment, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		f, err := decodeFragment(fields)
		if err != nil {
			s.logger.Warn("skipping undecodable fragment", zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		fragments = append(fragments, *f)
	}
	return fragments, nil
}

func decodeFragment(fields map[string]string) (*domain.Fragment, error) {
	f := domain.Fragment{
		ID:        fields[fieldID],
		APIID:     fields[fieldAPIID],
		Type:      domain.FragmentType(fields[fieldType]),
		Embedding: bytesToFloat32s([]byte(fields[fieldEmbedding])),
		LastUsed:  fromNanos(fields[fieldLastUsed]),
		CreatedAt: fromNanos(fields[fieldCreatedAt]),
		UpdatedAt: fromNanos(fields[fieldUpdatedAt]),
	}
	usage, err := strconv.Atoi(fields[fieldUsageCount])
	if err != nil {
		return nil, fmt.Errorf("decoding usage count of %s: %w", f.ID, err)
	}
	f.UsageCount = usage

	if err := json.Unmarshal([]byte(fields[fieldContent]), &f.Content); err != nil {
		return nil, fmt.Errorf("decoding content of %s: %w", f.ID, err)
	}
	if err := json.Unmarshal([]byte(fields[fieldMetadata]), &f.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata of %s: %w", f.ID, err)
	}
	return &f, nil
}

func decodeAPIMetadata(fields map[string]string) domain.APIMetadata {
	count, _ := strconv.Atoi(fields["fragment_count"])
	usage, _ := strconv.Atoi(fields["total_usage"])
	return domain.APIMetadata{
		APIID:         fields["api_id"],
		SpecLocation:  fields["spec_location"],
		LastFetched:   fromNanos(fields["last_fetched"]),
		ETag:          fields["etag"],
		Version:       fields["version"],
		FragmentCount: count,
		TotalUsage:    usage,
	}
}
