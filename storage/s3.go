package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/ruteri/tdf-pipeline/interfaces"
)

// S3Store implements an item store in Amazon S3 or a compatible service.
type S3Store struct {
	client      s3iface.S3API
	bucketName  string
	prefix      string
	log         *slog.Logger
	locationURI string
}

// NewS3Store creates a new S3 item store. Without accessKey and secretKey the
// default AWS credential chain is used.
func NewS3Store(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Store, error) {
	// Format the URI for tracking
	uri := fmt.Sprintf("s3://%s/%s?region=%s", bucketName, prefix, region)
	if accessKey != "" {
		uri = fmt.Sprintf("s3://%s:***@%s/%s?region=%s", accessKey, bucketName, prefix, region)
	}
	if endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", endpoint)
	}

	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return newS3Store(s3.New(sess), bucketName, prefix, uri, log), nil
}

func newS3Store(client s3iface.S3API, bucketName, prefix, uri string, log *slog.Logger) *S3Store {
	return &S3Store{
		client:      client,
		bucketName:  bucketName,
		prefix:      strings.Trim(prefix, "/"),
		log:         log,
		locationURI: uri,
	}
}

// List returns up to limit item ids in key order.
func (b *S3Store) List(ctx context.Context, limit int) ([]string, error) {
	start := time.Now()
	listPrefix := ""
	if b.prefix != "" {
		listPrefix = b.prefix + "/"
	}

	var ids []string
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucketName),
		Prefix:    aws.String(listPrefix),
		Delimiter: aws.String("/"),
	}
	err := b.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, object := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(object.Key), listPrefix)
			if name == "" || validateID(name) != nil {
				continue
			}
			ids = append(ids, name)
			if limit > 0 && len(ids) >= limit {
				return false
			}
		}
		return true
	})
	if err != nil {
		b.log.Error("Failed to list objects in S3",
			slog.String("bucket", b.bucketName),
			slog.String("prefix", listPrefix),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	return ids, nil
}

// Fetch retrieves an item. Returns ErrItemNotFound if the payload object doesn't exist.
func (b *S3Store) Fetch(ctx context.Context, id string) (interfaces.Item, error) {
	if err := validateID(id); err != nil {
		return interfaces.Item{}, err
	}
	start := time.Now()

	payload, err := b.getObject(ctx, b.objectKey(id))
	if err != nil {
		return interfaces.Item{}, err
	}

	attrs := interfaces.NewAttributes(nil)
	data, err := b.getObject(ctx, b.objectKey(attributesName(id)))
	switch {
	case err == nil:
		attrs, err = decodeAttributes(data)
		if err != nil {
			return interfaces.Item{}, &interfaces.MetadataError{
				Item: interfaces.Item{ID: id, Attributes: interfaces.NewAttributes(nil), Payload: payload},
				Err:  err,
			}
		}
	case !errors.Is(err, interfaces.ErrItemNotFound):
		return interfaces.Item{}, err
	}

	b.log.Debug("Fetched item from S3",
		slog.String("bucket", b.bucketName),
		slog.String("id", id),
		slog.Int("size", len(payload)),
		slog.Duration("duration", time.Since(start)))

	return interfaces.Item{ID: id, Attributes: attrs, Payload: payload}, nil
}

func (b *S3Store) getObject(ctx context.Context, key string) ([]byte, error) {
	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return nil, interfaces.ErrItemNotFound
		}
		b.log.Error("Failed to get object from S3",
			slog.String("bucket", b.bucketName),
			slog.String("key", key),
			"err", err)
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

// Store uploads the metadata object and then the payload object.
func (b *S3Store) Store(ctx context.Context, item interfaces.Item) error {
	if err := validateID(item.ID); err != nil {
		return err
	}

	attrs, err := encodeAttributes(item.Attributes)
	if err != nil {
		return err
	}

	contentType := "application/octet-stream"
	if mime, ok := item.Attributes.Get(interfaces.MIMETypeAttribute); ok && mime != "" {
		contentType = mime
	}

	objects := []struct {
		key         string
		data        []byte
		contentType string
	}{
		{b.objectKey(attributesName(item.ID)), attrs, "application/json"},
		{b.objectKey(item.ID), item.Payload, contentType},
	}
	for _, object := range objects {
		_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(b.bucketName),
			Key:         aws.String(object.key),
			Body:        bytes.NewReader(object.data),
			ContentType: aws.String(object.contentType),
		})
		if err != nil {
			return fmt.Errorf("failed to upload object to S3: %w", err)
		}
	}

	b.log.Debug("Stored item in S3",
		slog.String("bucket", b.bucketName),
		slog.String("id", item.ID),
		slog.Int("size", len(item.Payload)))
	return nil
}

// Delete removes the payload and metadata objects of an item.
func (b *S3Store) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	for _, key := range []string{b.objectKey(id), b.objectKey(attributesName(id))} {
		_, err := b.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucketName),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("failed to delete object from S3: %w", err)
		}
	}
	return nil
}

// Name returns a unique identifier for this store.
func (b *S3Store) Name() string {
	return fmt.Sprintf("s3-%s", b.bucketName)
}

// LocationURI returns the URI that identifies this store.
func (b *S3Store) LocationURI() string {
	return b.locationURI
}

func (b *S3Store) objectKey(name string) string {
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}
