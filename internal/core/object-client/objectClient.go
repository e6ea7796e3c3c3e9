package objectclient

import (
	"strings"
)

// ParseStoragePath resolves a lesson resource location into (bucket, key).
// It accepts "s3://bucket/key", virtual-hosted S3 URLs
// (https://bucket.s3.region.amazonaws.com/key) and bare keys, which resolve
// against defaultBucket.
func ParseStoragePath(path, defaultBucket string) (bucket, key string) {
	path = strings.TrimSpace(path)
	switch {
	case strings.HasPrefix(path, "s3://"):
		parts := strings.SplitN(strings.TrimPrefix(path, "s3://"), "/", 2)
		if len(parts) == 2 {
			return parts[0], parts[1]
		}
		return parts[0], ""
	case strings.HasPrefix(path, "https://"):
		hostPath := strings.SplitN(strings.TrimPrefix(path, "https://"), "/", 2)
		host := hostPath[0]
		if len(hostPath) == 2 {
			key = hostPath[1]
		}
		if i := strings.Index(host, "."); i > 0 {
			bucket = host[:i]
		}
		return bucket, key
	default:
		return defaultBucket, strings.TrimPrefix(path, "/")
	}
}
