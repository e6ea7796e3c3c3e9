package objectclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStoragePath(t *testing.T) {
	cases := []struct {
		in, bucket, key string
	}{
		{"s3://materials/courses/c1/a.pdf", "materials", "courses/c1/a.pdf"},
		{"https://materials.s3.us-east-2.amazonaws.com/courses/c1/a.pdf", "materials", "courses/c1/a.pdf"},
		{"/courses/c1/a.pdf", "default", "courses/c1/a.pdf"},
		{"courses/c1/a.pdf", "default", "courses/c1/a.pdf"},
	}
	for _, tc := range cases {
		bucket, key := ParseStoragePath(tc.in, "default")
		assert.Equal(t, tc.bucket, bucket, tc.in)
		assert.Equal(t, tc.key, key, tc.in)
	}
}
