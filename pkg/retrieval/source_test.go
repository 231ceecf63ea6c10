package retrieval

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body := f.objects[aws.ToString(in.Key)]
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Source_Documents(t *testing.T) {
	t.Parallel()

	src := NewS3SourceWithClient(&fakeS3{objects: map[string]string{
		"kb/refunds.md":     "# Refunds",
		"kb/faq/returns.md": "# Returns",
		"kb/logo.png":       "binary",
		"other/skip.md":     "skip",
	}}, "docs", "kb/")

	assert.Equal(t, "s3://docs/kb/", src.Name())

	docs, err := src.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, Document{Source: "s3://docs/kb/faq/returns.md", Filename: "returns.md", Content: "# Returns"}, docs[0])
	assert.Equal(t, "s3://docs/kb/refunds.md", docs[1].Source)
}

func TestParseS3URI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri            string
		bucket, prefix string
		ok             bool
	}{
		{uri: "s3://docs/kb/", bucket: "docs", prefix: "kb/", ok: true},
		{uri: "s3://docs", bucket: "docs", ok: true},
		{uri: "s3:///kb", ok: false},
		{uri: "./docs", ok: false},
		{uri: "https://docs/kb", ok: false},
	}
	for _, tt := range tests {
		bucket, prefix, ok := ParseS3URI(tt.uri)
		assert.Equal(t, tt.ok, ok, tt.uri)
		assert.Equal(t, tt.bucket, bucket, tt.uri)
		assert.Equal(t, tt.prefix, prefix, tt.uri)
	}
}
