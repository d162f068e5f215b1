package io

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps marker objects in a map, mimicking just enough of the S3
// surface for the manager.
type fakeS3 struct {
	objects map[string]bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]bool{}}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.objects[*params.Key] = true
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.objects[*params.Key] {
		return &s3.HeadObjectOutput{}, nil
	}
	return nil, &types.NotFound{}
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		if len(key) >= len(*params.Prefix) && key[:len(*params.Prefix)] == *params.Prefix {
			k := key
			out.Contents = append(out.Contents, types.Object{Key: &k})
		}
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	for _, obj := range params.Delete.Objects {
		delete(f.objects, *obj.Key)
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func newS3Fixture() (*S3Manager, *fakeS3) {
	fake := newFakeS3()
	return &S3Manager{client: fake, bucket: "opencga", prefix: "catalog"}, fake
}

func TestS3WorkspaceLayout(t *testing.T) {
	m, fake := newS3Fixture()
	ctx := context.Background()

	require.NoError(t, m.CreateUser(ctx, "owner"))
	require.NoError(t, m.CreateStudy(ctx, "owner", 1, 2))
	require.NoError(t, m.CreateFolder(ctx, "owner", 1, 2, "data/vcfs"))

	assert.True(t, fake.objects["catalog/users/owner/"])
	assert.True(t, fake.objects["catalog/users/owner/projects/1/2/"])
	assert.True(t, fake.objects["catalog/users/owner/projects/1/2/data/vcfs/"])
}

func TestS3JobOutDirReturnsURI(t *testing.T) {
	m, fake := newS3Fixture()

	uri, err := m.CreateJobOutDir(context.Background(), "owner", 1, 2, 7)
	require.NoError(t, err)
	assert.Equal(t, "s3://opencga/catalog/users/owner/projects/1/2/jobs/7/", uri)
	assert.True(t, fake.objects["catalog/users/owner/projects/1/2/jobs/7/"])
}

func TestS3DeleteRemovesWholePrefix(t *testing.T) {
	m, fake := newS3Fixture()
	ctx := context.Background()

	require.NoError(t, m.CreateFolder(ctx, "owner", 1, 2, "data"))
	require.NoError(t, m.CreateFolder(ctx, "owner", 1, 2, "data/vcfs"))
	require.NoError(t, m.CreateFolder(ctx, "owner", 1, 2, "other"))

	require.NoError(t, m.DeleteFile(ctx, "owner", 1, 2, "data"))
	assert.False(t, fake.objects["catalog/users/owner/projects/1/2/data/"])
	assert.False(t, fake.objects["catalog/users/owner/projects/1/2/data/vcfs/"])
	assert.True(t, fake.objects["catalog/users/owner/projects/1/2/other/"])
}

func TestS3ExistsHandlesMissingKeys(t *testing.T) {
	m, _ := newS3Fixture()
	ctx := context.Background()

	ok, err := m.Exists(ctx, "owner", 1, 2, "data")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.CreateFolder(ctx, "owner", 1, 2, "data"))
	ok, err = m.Exists(ctx, "owner", 1, 2, "data")
	require.NoError(t, err)
	assert.True(t, ok)
}
