package meld

import (
	"fmt"
	"strings"
)

// PathValidator checks a full /bucket/object path.
// It must return an error wrapping ErrInvalidPath for malformed paths.
type PathValidator func(path string) error

// ValidatePath reports whether path has the form /bucket/object.
// The bucket segment must be non-empty and limited to lowercase letters,
// digits, '.', '-' and '_'. The object portion is not inspected.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path is empty", ErrInvalidPath)
	}
	if path[0] != '/' {
		return fmt.Errorf("%w: path should have format /bucket/filename but got %q", ErrInvalidPath, path)
	}
	end := strings.IndexByte(path[1:], '/')
	if end < 0 {
		return fmt.Errorf("%w: path should have format /bucket/filename but got %q", ErrInvalidPath, path)
	}
	bucket := path[1 : end+1]
	if bucket == "" {
		return fmt.Errorf("%w: empty bucket in %q", ErrInvalidPath, path)
	}
	for i := 0; i < len(bucket); i++ {
		if !validBucketByte(bucket[i]) {
			return fmt.Errorf("%w: invalid bucket name %q", ErrInvalidPath, bucket)
		}
	}
	return nil
}

func validBucketByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '.', c == '-', c == '_':
		return true
	}
	return false
}

// BucketOf returns the bucket prefix of destination: everything up to and
// including the second '/'. "/b/obj" yields "/b/".
func BucketOf(destination string) (string, error) {
	if len(destination) < 2 {
		return "", fmt.Errorf("%w: no bucket in %q", ErrInvalidPath, destination)
	}
	i := strings.IndexByte(destination[1:], '/')
	if i < 0 {
		return "", fmt.Errorf("%w: no bucket in %q", ErrInvalidPath, destination)
	}
	return destination[:i+2], nil
}

// SplitPath splits a /bucket/object path into its bare bucket and object names.
func SplitPath(path string) (bucket, object string, err error) {
	if err := ValidatePath(path); err != nil {
		return "", "", err
	}
	prefix, err := BucketOf(path)
	if err != nil {
		return "", "", err
	}
	return prefix[1 : len(prefix)-1], path[len(prefix):], nil
}
