// Package backup provides the blob stores whiskey backups are written to.
package backup

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/rl1809/whiskey-cellar/internal/port"
)

// Open resolves a backup location to a blob store and the key inside it.
//
//	/var/backups/cellar.json                 local file
//	file:///var/backups/cellar.json          local file
//	s3://bucket/backups/cellar.json          S3 object
//	s3://bucket/cellar.json?region=eu-west-1&endpoint=http://localhost:9000&path_style=true
func Open(ctx context.Context, location string) (port.BlobStore, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, "", fmt.Errorf("parse backup location %q: %w", location, err)
	}

	switch u.Scheme {
	case "", "file":
		p := location
		if u.Scheme == "file" {
			p = u.Path
		}
		if p == "" || strings.HasSuffix(p, "/") {
			return nil, "", fmt.Errorf("backup location %q names no file", location)
		}
		store, err := NewFileStore(filepath.Dir(p))
		if err != nil {
			return nil, "", err
		}
		return store, filepath.Base(p), nil

	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, "", fmt.Errorf("backup location %q needs a bucket and an object key", location)
		}
		prefix := path.Dir(key)
		if prefix == "." {
			prefix = ""
		}
		q := u.Query()
		store, err := NewS3Store(ctx, S3Config{
			Bucket:    u.Host,
			Prefix:    prefix,
			Region:    q.Get("region"),
			Endpoint:  q.Get("endpoint"),
			PathStyle: q.Get("path_style") == "true",
		})
		if err != nil {
			return nil, "", err
		}
		return store, path.Base(key), nil
	}
	return nil, "", fmt.Errorf("unsupported backup location scheme %q", u.Scheme)
}
