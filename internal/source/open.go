package source

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Open resolves a location string to a Source:
//
//	"-"                  stdin, read fully into memory
//	"http://…", "https://…"  HTTP range reads
//	"s3://bucket/key"    S3 object using the endpoint and credentials in s3
//	anything else        local file path
func Open(location string, s3 S3Config) (Source, error) {
	loc := strings.TrimSpace(location)
	switch {
	case loc == "":
		return nil, fmt.Errorf("location is empty")
	case loc == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return NewMemory("stdin", data), nil
	case strings.HasPrefix(loc, "http://"), strings.HasPrefix(loc, "https://"):
		return NewHTTP(loc, nil)
	case strings.HasPrefix(loc, "s3://"):
		bucket, key, err := ParseS3URI(loc)
		if err != nil {
			return nil, err
		}
		s3.Bucket = bucket
		s3.Key = key
		return NewS3(s3)
	default:
		return NewFile(loc)
	}
}

// LocalPath returns the filesystem path behind src, if it has one.
func LocalPath(src Source) (string, bool) {
	f, ok := src.(*File)
	if !ok {
		return "", false
	}
	return f.Path(), true
}
