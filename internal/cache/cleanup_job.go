package cache

import (
	"github.com/rs/zerolog"
)

// CleanupJob removes expired entries so an idle cache does not hold stale tables.
type CleanupJob struct {
	cache *Cache
	log   zerolog.Logger
}

// NewCleanupJob creates a cleanup job for c.
func NewCleanupJob(c *Cache, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		cache: c,
		log:   log.With().Str("job", "result_cache_cleanup").Logger(),
	}
}

// Run purges expired entries.
func (j *CleanupJob) Run() error {
	deleted, err := j.cache.Purge()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to purge expired cache entries")
		return err
	}

	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Cleaned up expired cache entries")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "result_cache_cleanup"
}
