// Package media turns stored media references into URLs clients can fetch.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

const defaultTTL = 15 * time.Minute

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	TTL       time.Duration
}

// Presigner issues presigned GET URLs for objects in one bucket. References
// that are already absolute URLs are returned unchanged.
type Presigner struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// NewPresigner builds a client without contacting the server. Region must be
// set for presigning to stay offline.
func NewPresigner(opts Options) (*Presigner, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("media: endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("media: create minio client: %w", err)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Presigner{client: client, bucket: opts.Bucket, ttl: ttl}, nil
}

func isAbsolute(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:")
}

// URL resolves a single reference.
func (p *Presigner) URL(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("media: empty reference")
	}
	if isAbsolute(ref) {
		return ref, nil
	}
	u, err := p.client.PresignedGetObject(ctx, p.bucket, strings.TrimPrefix(ref, "/"), p.ttl, nil)
	if err != nil {
		return "", fmt.Errorf("media: presign %s: %w", ref, err)
	}
	return u.String(), nil
}

// Resolve returns a copy of m with every reference turned into a URL.
func (p *Presigner) Resolve(ctx context.Context, m store.Media) (store.Media, error) {
	var out store.Media
	var err error
	if out.Photos, err = p.resolveAll(ctx, m.Photos); err != nil {
		return store.Media{}, err
	}
	if out.Videos, err = p.resolveAll(ctx, m.Videos); err != nil {
		return store.Media{}, err
	}
	if out.Audio, err = p.resolveAll(ctx, m.Audio); err != nil {
		return store.Media{}, err
	}
	return out, nil
}

func (p *Presigner) resolveAll(ctx context.Context, refs []string) ([]string, error) {
	urls := make([]string, 0, len(refs))
	for _, ref := range refs {
		u, err := p.URL(ctx, ref)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}
