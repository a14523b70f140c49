package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/spf13/viper"
)

const minMultipartSize = 12 << 20

// S3 stores files in a bucket under <userID>/<filename> keys. Works
// against AWS or any S3-compatible endpoint (R2, MinIO).
type S3 struct {
	c      *s3.Client
	bucket *string
}

func NewS3(ctx context.Context) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			viper.GetString("s3.access_key_id"),
			viper.GetString("s3.secret_access_key"),
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	bucket := aws.String(viper.GetString("s3.bucket"))

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := viper.GetString("s3.endpoint"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if region := viper.GetString("s3.region"); region != "" {
			o.Region = region
		} else {
			o.Region = "auto"
		}
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
			return nil, fmt.Errorf("bucket '%s' does not exist", *bucket)
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &S3{
		c:      client,
		bucket: bucket,
	}, nil
}

func (s *S3) key(userID, filename string) (string, error) {
	if strings.ContainsAny(filename, `/\`) || filename == ".." {
		return "", ErrUnsafeName
	}
	return userID + "/" + filename, nil
}

func (s *S3) Put(ctx context.Context, userID, filename string, r io.Reader, size int64, contentType string) (*StoredFile, error) {
	key, err := s.key(userID, filename)
	if err != nil {
		return nil, err
	}

	input := &s3.PutObjectInput{
		Bucket:        s.bucket,
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	}

	if size > minMultipartSize {
		uploader := manager.NewUploader(s.c, func(u *manager.Uploader) {
			u.Concurrency = 5
			u.PartSize = 6 << 20
		})
		_, err = uploader.Upload(ctx, input)
	} else {
		_, err = s.c.PutObject(ctx, input)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upload file, %w", err)
	}

	head, err := s.c.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: s.bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to stat uploaded file, %w", err)
	}

	return &StoredFile{
		Filename:    filename,
		Size:        aws.ToInt64(head.ContentLength),
		ContentType: contentType,
		Location:    key,
		CreatedAt:   aws.ToTime(head.LastModified),
	}, nil
}

func (s *S3) List(ctx context.Context, userID string) ([]StoredFile, error) {
	prefix := userID + "/"
	files := []StoredFile{}

	paginator := s3.NewListObjectsV2Paginator(s.c, &s3.ListObjectsV2Input{
		Bucket: s.bucket,
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list files, %w", err)
		}

		for _, obj := range page.Contents {
			files = append(files, StoredFile{
				Filename:  strings.TrimPrefix(aws.ToString(obj.Key), prefix),
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: aws.ToTime(obj.LastModified),
			})
		}
	}

	return files, nil
}

func (s *S3) Delete(ctx context.Context, userID, filename string) error {
	key, err := s.key(userID, filename)
	if err != nil {
		return err
	}

	_, err = s.c.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: s.bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
			return ErrNotFound
		}

		return fmt.Errorf("failed to stat file, %w", err)
	}

	_, err = s.c.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: s.bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file, %w", err)
	}

	return nil
}
