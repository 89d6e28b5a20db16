package hosted

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Bucket uploads objects to one public storage bucket.
type Bucket struct {
	c    *Client
	name string
}

func NewBucket(c *Client, name string) *Bucket { return &Bucket{c: c, name: name} }

// Upload stores data at path and returns its public URL.
func (b *Bucket) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	p := escapePath(path)
	req := request{
		op:      "storage.upload",
		method:  http.MethodPost,
		url:     b.c.base + "/storage/v1/object/" + b.name + "/" + p,
		raw:     data,
		ctype:   contentType,
		headers: map[string]string{"x-upsert": "false", "Cache-Control": "max-age=3600"},
	}
	if err := b.c.do(ctx, req, nil); err != nil {
		return "", err
	}
	return b.c.base + "/storage/v1/object/public/" + b.name + "/" + p, nil
}

func escapePath(p string) string {
	segs := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
