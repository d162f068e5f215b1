package io

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/nicholsn/opencga/internal/common"
)

// s3API is the slice of the S3 client the manager uses. Tests substitute a
// fake; production passes the real client.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Manager lays the workspace out as keys under a bucket prefix.
// Directories are zero-byte marker objects with a trailing slash.
type S3Manager struct {
	client s3API
	bucket string
	prefix string
}

func NewS3Manager(ctx context.Context, cfg common.S3Config) (*S3Manager, error) {
	if cfg.Bucket == "" {
		return nil, common.NewErrInvalidArgument("io.s3.bucket is required for the s3 backend")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error loading the S3 configuration")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return &S3Manager{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// key builds the object key for a workspace path, always with a trailing
// slash since the workspace only stores directory markers.
func (m *S3Manager) key(rel string) string {
	rel = strings.Trim(rel, "/") + "/"
	if m.prefix == "" {
		return rel
	}
	return m.prefix + "/" + rel
}

func (m *S3Manager) putMarker(ctx context.Context, rel string) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(rel)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return common.NewInternalServerError(err, "error creating workspace marker %s", rel)
	}
	return nil
}

func (m *S3Manager) CreateUser(ctx context.Context, userID string) error {
	return m.putMarker(ctx, userPath(userID))
}

func (m *S3Manager) CreateStudy(ctx context.Context, userID string, projectID, studyID int) error {
	return m.putMarker(ctx, studyPath(userID, projectID, studyID))
}

func (m *S3Manager) CreateFolder(ctx context.Context, userID string, projectID, studyID int, path string) error {
	return m.putMarker(ctx, studyPath(userID, projectID, studyID)+"/"+path)
}

func (m *S3Manager) CreateJobOutDir(ctx context.Context, userID string, projectID, studyID, jobID int) (string, error) {
	rel := jobPath(userID, projectID, studyID, jobID)
	if err := m.putMarker(ctx, rel); err != nil {
		return "", err
	}
	return "s3://" + m.bucket + "/" + m.key(rel), nil
}

func (m *S3Manager) DeleteFile(ctx context.Context, userID string, projectID, studyID int, path string) error {
	prefix := m.key(studyPath(userID, projectID, studyID) + "/" + path)
	list, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return common.NewInternalServerError(err, "error listing %s", path)
	}
	if len(list.Contents) == 0 {
		return nil
	}
	objects := make([]types.ObjectIdentifier, 0, len(list.Contents))
	for _, obj := range list.Contents {
		objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
	}
	_, err = m.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(m.bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return common.NewInternalServerError(err, "error deleting %s", path)
	}
	return nil
}

func (m *S3Manager) Exists(ctx context.Context, userID string, projectID, studyID int, path string) (bool, error) {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(studyPath(userID, projectID, studyID) + "/" + path)),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	// HeadObject reports absence as a bare 404 on some S3-compatible
	// stores instead of the typed NotFound error.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}
	return false, common.NewInternalServerError(err, "error checking %s", path)
}
