package storage

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewLocal(t.TempDir(), "static/")
	require.NoError(t, err)

	url, err := store.Put(ctx, "avatars/alice.jpg", "image/jpeg", bytes.NewReader([]byte("jpeg")), 4)
	require.NoError(t, err)
	assert.Equal(t, "/static/avatars/alice.jpg", url)

	content, err := os.ReadFile(filepath.Join(store.RootAbs(), "avatars", "alice.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(content))

	_, err = store.Put(ctx, "avatars/alice.jpg", "image/jpeg", bytes.NewReader([]byte("v2")), 2)
	require.NoError(t, err)
	content, err = os.ReadFile(filepath.Join(store.RootAbs(), "avatars", "alice.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(content))

	entries, err := os.ReadDir(filepath.Join(store.RootAbs(), "avatars"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")

	require.NoError(t, store.Delete(ctx, "avatars/alice.jpg"))
	require.NoError(t, store.Delete(ctx, "avatars/alice.jpg"))
	_, err = os.Stat(filepath.Join(store.RootAbs(), "avatars", "alice.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := NewLocal(t.TempDir(), "/static")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../escape.jpg", "image/jpeg", bytes.NewReader(nil), 0)
	assert.Error(t, err)
}

func TestLocalStoreFileServer(t *testing.T) {
	t.Parallel()

	store, err := NewLocal(t.TempDir(), "/static")
	require.NoError(t, err)
	assert.Equal(t, "/static", store.PublicPath())

	_, err = store.Put(context.Background(), "avatars/alice.jpg", "image/jpeg", bytes.NewReader([]byte("jpeg")), 4)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	store.FileServer().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/avatars/alice.jpg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())

	rec = httptest.NewRecorder()
	store.FileServer().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/avatars/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeS3 struct {
	put    *s3.PutObjectInput
	delete *s3.DeleteObjectInput
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	return &s3.PutObjectOutput{}, f.err
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.delete = in
	return &s3.DeleteObjectOutput{}, f.err
}

func TestS3StorePut(t *testing.T) {
	client := &fakeS3{}
	store := newS3Store(client, S3Config{Endpoint: "http://minio:9000/", Bucket: "contacts", Region: "us-east-1"})

	url, err := store.Put(context.Background(), "/avatars/alice.jpg", "image/jpeg", bytes.NewReader([]byte("x")), 1)
	require.NoError(t, err)

	assert.Equal(t, "http://minio:9000/contacts/avatars/alice.jpg", url)
	require.NotNil(t, client.put)
	assert.Equal(t, "contacts", aws.ToString(client.put.Bucket))
	assert.Equal(t, "avatars/alice.jpg", aws.ToString(client.put.Key))
	assert.Equal(t, "image/jpeg", aws.ToString(client.put.ContentType))
	assert.Equal(t, int64(1), aws.ToInt64(client.put.ContentLength))
}

func TestS3StorePublicURL(t *testing.T) {
	withCDN := newS3Store(&fakeS3{}, S3Config{Bucket: "b", PublicURL: "https://cdn.example/"})
	assert.Equal(t, "https://cdn.example", withCDN.publicURL)

	regional := newS3Store(&fakeS3{}, S3Config{Bucket: "b", Region: "eu-west-1"})
	assert.Equal(t, "https://b.s3.eu-west-1.amazonaws.com", regional.publicURL)
}

func TestS3StoreWrapsErrors(t *testing.T) {
	boom := errors.New("access denied")
	store := newS3Store(&fakeS3{err: boom}, S3Config{Bucket: "b", Region: "us-east-1"})

	_, err := store.Put(context.Background(), "k", "image/jpeg", bytes.NewReader(nil), 0)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, store.Delete(context.Background(), "k"), boom)
}

func TestNewS3UsesStaticCredentials(t *testing.T) {
	store, err := NewS3(context.Background(), S3Config{
		Endpoint:  "http://localhost:9000",
		Region:    "us-east-1",
		Bucket:    "contacts",
		AccessKey: "minio",
		SecretKey: "minio-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/contacts", store.publicURL)
}
