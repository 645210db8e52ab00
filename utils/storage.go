package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// FileStore abstracts the object store holding client documents and
// payment receipts. Two backends are supported: Google Cloud Storage
// and Cloudflare R2 (S3-compatible), chosen via STORAGE_PROVIDER.
type FileStore interface {
	Upload(ctx context.Context, objectName, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, objectName string) error
}

// NewFileStore reads STORAGE_PROVIDER ("gcs" or "r2", default "r2")
// and builds the matching backend from env configuration.
func NewFileStore(ctx context.Context) (FileStore, error) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("STORAGE_PROVIDER"))) {
	case "gcs":
		return newGCSStore(ctx)
	case "r2", "":
		return newR2Store(ctx)
	default:
		return nil, fmt.Errorf("unknown STORAGE_PROVIDER %q (want gcs or r2)", os.Getenv("STORAGE_PROVIDER"))
	}
}

// ---- GCS backend -----------------------------------------------------------

type gcsStore struct {
	client *gcs.Client
	bucket string
}

func newGCSStore(ctx context.Context) (*gcsStore, error) {
	bucket := os.Getenv("GCS_BUCKET")
	credentialsPath := os.Getenv("CREDENTIALS_FILE_LOCATION")
	if bucket == "" || credentialsPath == "" {
		return nil, fmt.Errorf("missing GCS env vars (GCS_BUCKET, CREDENTIALS_FILE_LOCATION)")
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	client, err := gcs.NewClient(ctx, option.WithAuthCredentialsFile(option.ServiceAccount, filepath.Join(wd, credentialsPath)))
	if err != nil {
		return nil, err
	}
	return &gcsStore{client: client, bucket: bucket}, nil
}

func (g *gcsStore) Upload(ctx context.Context, objectName, contentType string, body io.Reader, _ int64) (string, error) {
	w := g.client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache"

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload copy: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload close: %w", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, objectName), nil
}

func (g *gcsStore) Delete(ctx context.Context, objectName string) error {
	return g.client.Bucket(g.bucket).Object(objectName).Delete(ctx)
}

// ---- R2 backend ------------------------------------------------------------

type r2Store struct {
	client *s3.Client
	bucket string
}

func newR2Store(ctx context.Context) (*r2Store, error) {
	bucket := os.Getenv("R2_BUCKET")
	accessKey := os.Getenv("R2_ACCESS_KEY_ID")
	secretKey := os.Getenv("R2_SECRET_ACCESS_KEY")
	endpoint := os.Getenv("R2_ENDPOINT") // https://<account-id>.r2.cloudflarestorage.com

	if bucket == "" || accessKey == "" || secretKey == "" || endpoint == "" {
		return nil, fmt.Errorf("missing R2 env vars (R2_BUCKET, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_ENDPOINT)")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true // required for R2
	})
	return &r2Store{client: client, bucket: bucket}, nil
}

func (r *r2Store) Upload(ctx context.Context, objectName, contentType string, body io.Reader, _ int64) (string, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(r.bucket),
		Key:          aws.String(objectName),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("no-cache"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", objectName, err)
	}

	// R2_PUBLIC_DOMAIN is the custom domain or r2.dev URL of the bucket.
	domain := strings.TrimRight(os.Getenv("R2_PUBLIC_DOMAIN"), "/")
	return fmt.Sprintf("%s/%s/%s", domain, r.bucket, objectName), nil
}

func (r *r2Store) Delete(ctx context.Context, objectName string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", objectName, err)
	}
	return nil
}

// ---- object naming ---------------------------------------------------------

// BuildObjectName builds a unique per-submission object path, e.g.
// "submissions/6543…/passport/1718000000-3f2a….pdf".
func BuildObjectName(prefix, submissionID, label, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = ".bin"
	}
	slug := GenerateSlug(label)
	if slug == "" {
		slug = "file"
	}
	return fmt.Sprintf("%s/%s/%s/%d-%s%s",
		prefix, submissionID, slug, time.Now().UTC().Unix(), uuid.New().String(), ext)
}

