package objstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stevecastle/sarview/appconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	fail    error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = b
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func newFake() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var out []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("data:"+n), 0o644))
		out = append(out, p)
	}
	return out
}

func TestKey(t *testing.T) {
	p := &S3Publisher{Bucket: "b", Prefix: "/scenes/2024/"}
	assert.Equal(t, "scenes/2024/S1A.tif", p.Key("/tmp/out/S1A.tif"))
	p.Prefix = ""
	assert.Equal(t, "S1A.tif", p.Key("S1A.tif"))
}

func TestPublishAll(t *testing.T) {
	fake := newFake()
	p := &S3Publisher{Bucket: "b", Prefix: "out", client: fake}
	files := writeFiles(t, "scene.tif", "scene.json")

	keys, err := p.PublishAll(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, []string{"out/scene.tif", "out/scene.json"}, keys)
	assert.Equal(t, []byte("data:scene.tif"), fake.objects["b/out/scene.tif"])
	assert.Equal(t, "application/json", fake.types["b/out/scene.json"])
}

func TestPublishAllStopsOnError(t *testing.T) {
	fake := newFake()
	fake.fail = &smithy.GenericAPIError{Code: "AccessDenied", Message: "no write access"}
	p := &S3Publisher{Bucket: "b", client: fake}

	keys, err := p.PublishAll(context.Background(), writeFiles(t, "a.tif", "b.tif"))
	require.Error(t, err)
	assert.Empty(t, keys)
	assert.Contains(t, err.Error(), "AccessDenied: no write access")
}

func TestPublishAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &S3Publisher{Bucket: "b", client: newFake()}
	_, err := p.PublishAll(ctx, writeFiles(t, "a.tif"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "boom", Describe(errors.New("boom")))
	assert.Equal(t, "NoSuchBucket: gone", Describe(&smithy.GenericAPIError{Code: "NoSuchBucket", Message: "gone"}))
}

func TestNewS3PublisherRequiresBucket(t *testing.T) {
	_, err := NewS3Publisher(context.Background(), appconfig.S3{})
	assert.ErrorIs(t, err, ErrNoBucket)
}

func TestNewS3PublisherStatic(t *testing.T) {
	p, err := NewS3Publisher(context.Background(), appconfig.S3{
		Bucket: "b", Region: "eu-west-1", Endpoint: "http://localhost:9000",
		AccessKeyID: "id", SecretAccessKey: "secret", UsePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "b", p.Bucket)
}
