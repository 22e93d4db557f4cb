package redis

import (
	"fmt"
	"strconv"
)

const (
	// KeyPrefixJobRuntime is the prefix for mirrored job runtime snapshots
	KeyPrefixJobRuntime = "linkloom:job:runtime:"
	// KeyActiveJobs is the set of job ids whose runtime is not terminal
	KeyActiveJobs = "linkloom:jobs:active"
)

// JobRuntimeKey returns the Redis key for a job runtime snapshot
func JobRuntimeKey(jobID int64) string {
	return KeyPrefixJobRuntime + strconv.FormatInt(jobID, 10)
}

// ActiveJobsKey returns the key for the set of active job ids
func ActiveJobsKey() string {
	return KeyActiveJobs
}

// ExtractJobID extracts the job id from a runtime key
func ExtractJobID(key string) (int64, error) {
	if len(key) <= len(KeyPrefixJobRuntime) {
		return 0, fmt.Errorf("invalid job runtime key: %s", key)
	}
	id, err := strconv.ParseInt(key[len(KeyPrefixJobRuntime):], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid job runtime key: %s", key)
	}
	return id, nil
}
