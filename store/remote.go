package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds credentials for s3:// backup locations. Empty fields fall
// back to the default AWS credential chain.
type S3Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string // optional S3-compatible endpoint, addressed path-style
}

var errReadOnlyLocation = errors.New("HTTP backup locations are read-only")

// location is a parsed backup path: a local file, an HTTP(S) URL or an S3
// object.
type location struct {
	scheme string // "", "http", "https" or "s3"
	path   string // local path or full URL
	bucket string
	key    string
}

func parseLocation(raw string) (location, error) {
	scheme, rest, found := strings.Cut(raw, "://")
	if !found {
		return location{path: raw}, nil
	}

	switch strings.ToLower(scheme) {
	case "file":
		return location{path: rest}, nil
	case "http", "https":
		return location{scheme: strings.ToLower(scheme), path: raw}, nil
	case "s3":
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return location{}, fmt.Errorf("invalid S3 URL %q: want s3://bucket/key", raw)
		}
		return location{scheme: "s3", path: raw, bucket: bucket, key: key}, nil
	default:
		return location{}, fmt.Errorf("unsupported backup location %q", raw)
	}
}

// OpenReader opens a backup location for reading.
func OpenReader(ctx context.Context, path string, cfg *S3Config) (io.ReadCloser, error) {
	loc, err := parseLocation(path)
	if err != nil {
		return nil, err
	}

	switch loc.scheme {
	case "":
		return os.Open(loc.path)
	case "http", "https":
		return fetchHTTP(ctx, loc.path)
	default:
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(loc.bucket),
			Key:    aws.String(loc.key),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", loc.path, err)
		}
		return out.Body, nil
	}
}

// OpenWriter opens a backup location for writing. S3 objects are uploaded
// when the writer is closed.
func OpenWriter(ctx context.Context, path string, cfg *S3Config) (io.WriteCloser, error) {
	loc, err := parseLocation(path)
	if err != nil {
		return nil, err
	}

	switch loc.scheme {
	case "":
		if err := os.MkdirAll(filepath.Dir(loc.path), 0755); err != nil {
			return nil, err
		}
		return os.Create(loc.path)
	case "http", "https":
		return nil, errReadOnlyLocation
	default:
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &s3Upload{ctx: ctx, client: client, loc: loc}, nil
	}
}

func fetchHTTP(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid backup URL: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}

func newS3Client(ctx context.Context, cfg *S3Config) (*s3.Client, error) {
	if cfg == nil {
		cfg = &S3Config{}
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// s3Upload buffers a backup and puts it on Close.
type s3Upload struct {
	ctx    context.Context
	client *s3.Client
	loc    location
	buf    bytes.Buffer
	done   bool
}

func (u *s3Upload) Write(p []byte) (int, error) {
	if u.done {
		return 0, os.ErrClosed
	}
	return u.buf.Write(p)
}

func (u *s3Upload) Close() error {
	if u.done {
		return nil
	}
	u.done = true

	_, err := u.client.PutObject(u.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.loc.bucket),
		Key:         aws.String(u.loc.key),
		Body:        bytes.NewReader(u.buf.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", u.loc.path, err)
	}
	return nil
}
