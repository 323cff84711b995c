package object_store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "test-bucket"

// fakeS3 serves the path-style subset of the S3 API used by S3Store.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	requests int
	puts     int

	// When set, every request fails with this status and S3 error code.
	failStatus int
	failCode   string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests++
	key := strings.TrimPrefix(r.URL.Path, "/"+testBucket+"/")

	if f.failStatus != 0 {
		writeS3Error(w, r, f.failStatus, f.failCode)
		return
	}

	switch r.Method {
	case http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeObjectHeaders(w, data)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			writeS3Error(w, r, http.StatusNotFound, "NoSuchKey")
			return
		}
		writeObjectHeaders(w, data)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.puts++
		f.objects[key] = body
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeObjectHeaders(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", ContentTypePNG)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.Header().Set("Last-Modified", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
}

func writeS3Error(w http.ResponseWriter, r *http.Request, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>%s</Code><Message>fake failure</Message><Resource>%s</Resource><RequestId>fake</RequestId></Error>`, code, r.URL.Path)
}

func (f *fakeS3) setObject(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeS3) fail(status int, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
	f.failCode = code
}

func (f *fakeS3) counts() (requests, puts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests, f.puts
}

// setupFakeS3 starts a fake S3 endpoint and returns a store pointed at it.
func setupFakeS3(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()

	fake := newFakeS3()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	store, err := NewS3Store(S3Config{
		Endpoint:  u.Host,
		Region:    "us-east-1",
		Bucket:    testBucket,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		UseSSL:    false,
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	require.True(t, store.IsConfigured())

	return store, fake
}

func TestS3Config_Configured(t *testing.T) {
	tests := []struct {
		name   string
		config S3Config
		want   bool
	}{
		{
			name:   "bucket and credentials",
			config: S3Config{Bucket: "b", AccessKey: "ak", SecretKey: "sk"},
			want:   true,
		},
		{
			name:   "bucket and client",
			config: S3Config{Bucket: "b", Client: &minio.Client{}},
			want:   true,
		},
		{
			name:   "missing bucket",
			config: S3Config{AccessKey: "ak", SecretKey: "sk"},
			want:   false,
		},
		{
			name:   "missing secret key",
			config: S3Config{Bucket: "b", AccessKey: "ak"},
			want:   false,
		},
		{
			name:   "missing access key",
			config: S3Config{Bucket: "b", SecretKey: "sk"},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.configured())
		})
	}
}

func TestS3Store_PublicURL(t *testing.T) {
	store, err := NewS3Store(S3Config{Bucket: "coin-images", Region: "eu-west-1", AccessKey: "ak", SecretKey: "sk"})
	require.NoError(t, err)

	assert.Equal(t,
		"https://coin-images.s3.eu-west-1.amazonaws.com/coins/bitcoin/small.png",
		store.PublicURL("coins/bitcoin/small.png"),
	)
	assert.Equal(t,
		"https://coin-images.s3.eu-west-1.amazonaws.com/coins/my%20coin/thumb.png",
		store.PublicURL("coins/my coin/thumb.png"),
	)

	custom, err := NewS3Store(S3Config{Bucket: "coin-images", PublicURL: "https://cdn.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/coins/eth/large.png", custom.PublicURL("coins/eth/large.png"))
}

func TestS3Store_Unconfigured_NoNetwork(t *testing.T) {
	fake := newFakeS3()
	server := httptest.NewServer(fake)
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	store, err := NewS3Store(S3Config{Endpoint: u.Host, Bucket: testBucket})
	require.NoError(t, err)
	assert.False(t, store.IsConfigured())

	ctx := context.Background()

	exists, err := store.Exists(ctx, "coins/bitcoin/small.png")
	assert.False(t, exists)
	assert.Equal(t, FailureNotConfigured, KindOf(err))

	_, err = store.Put(ctx, "coins/bitcoin/small.png", []byte("png"), ContentTypePNG)
	assert.Equal(t, FailureNotConfigured, KindOf(err))

	_, err = store.Get(ctx, "coins/bitcoin/small.png")
	assert.Equal(t, FailureNotConfigured, KindOf(err))

	requests, _ := fake.counts()
	assert.Zero(t, requests)
}

func TestS3Store_Exists(t *testing.T) {
	store, fake := setupFakeS3(t)
	ctx := context.Background()

	fake.setObject("coins/bitcoin/small.png", []byte("png-bytes"))

	exists, err := store.Exists(ctx, "coins/bitcoin/small.png")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, "coins/dogecoin/small.png")
	require.NoError(t, err, "a missing object is not a fault")
	assert.False(t, exists)
}

func TestS3Store_Exists_AccessDenied(t *testing.T) {
	store, fake := setupFakeS3(t)
	fake.fail(http.StatusForbidden, "AccessDenied")

	exists, err := store.Exists(context.Background(), "coins/bitcoin/small.png")
	assert.False(t, exists)
	require.Error(t, err)
	assert.Equal(t, FailureAccessDenied, KindOf(err))
}

func TestS3Store_MissingBucket_ExistsReadsAsMiss(t *testing.T) {
	store, fake := setupFakeS3(t)
	fake.fail(http.StatusNotFound, "NoSuchBucket")
	ctx := context.Background()

	exists, err := store.Exists(ctx, "coins/bitcoin/small.png")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Put(ctx, "coins/bitcoin/small.png", []byte("png"), ContentTypePNG)
	require.Error(t, err)
	assert.Equal(t, FailureBucketMissing, KindOf(err))
}

func TestS3Store_PutAndGet(t *testing.T) {
	store, fake := setupFakeS3(t)
	ctx := context.Background()

	key, err := store.Put(ctx, "coins/bitcoin/small.png", []byte("png-bytes"), ContentTypePNG)
	require.NoError(t, err)
	assert.Equal(t, "coins/bitcoin/small.png", key)

	_, puts := fake.counts()
	assert.Equal(t, 1, puts)

	fake.setObject("coins/ethereum/large.png", []byte("eth-bytes"))
	data, err := store.Get(ctx, "coins/ethereum/large.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("eth-bytes"), data)

	_, err = store.Get(ctx, "coins/missing/large.png")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestS3Store_Put_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		want   FailureKind
	}{
		{name: "bucket missing", status: http.StatusNotFound, code: "NoSuchBucket", want: FailureBucketMissing},
		{name: "access denied", status: http.StatusForbidden, code: "AccessDenied", want: FailureAccessDenied},
		{name: "invalid access key", status: http.StatusForbidden, code: "InvalidAccessKeyId", want: FailureInvalidCredentials},
		{name: "bad signature", status: http.StatusForbidden, code: "SignatureDoesNotMatch", want: FailureInvalidCredentials},
		{name: "unclassified", status: http.StatusBadRequest, code: "EntityTooLarge", want: FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, fake := setupFakeS3(t)
			fake.fail(tt.status, tt.code)

			key, err := store.Put(context.Background(), "coins/bitcoin/small.png", []byte("png"), ContentTypePNG)
			assert.Empty(t, key)
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))

			var failure *Failure
			require.True(t, errors.As(err, &failure))
			assert.Equal(t, "put", failure.Op)
			assert.Equal(t, "coins/bitcoin/small.png", failure.Key)
		})
	}
}

func TestS3Store_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	server.Close()

	client, err := minio.New(u.Host, &minio.Options{
		Creds:      credentials.NewStaticV4("ak", "sk", ""),
		Region:     "us-east-1",
		MaxRetries: 1,
	})
	require.NoError(t, err)

	store, err := NewS3Store(S3Config{Bucket: testBucket, Client: client, Timeout: 2 * time.Second})
	require.NoError(t, err)

	exists, err := store.Exists(context.Background(), "coins/bitcoin/small.png")
	assert.False(t, exists)
	assert.Equal(t, FailureUnknown, KindOf(err))
}

func TestClassifyS3Error(t *testing.T) {
	tests := []struct {
		code string
		want FailureKind
	}{
		{code: "NoSuchKey", want: FailureNotFound},
		{code: "NotFound", want: FailureNotFound},
		{code: "NoSuchBucket", want: FailureBucketMissing},
		{code: "AccessDenied", want: FailureAccessDenied},
		{code: "InvalidAccessKeyId", want: FailureInvalidCredentials},
		{code: "SignatureDoesNotMatch", want: FailureInvalidCredentials},
		{code: "ExpiredToken", want: FailureInvalidCredentials},
		{code: "SlowDown", want: FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			f := classifyS3Error("put", "k", minio.ErrorResponse{Code: tt.code})
			assert.Equal(t, tt.want, f.Kind)
		})
	}

	f := classifyS3Error("exists", "k", context.DeadlineExceeded)
	assert.Equal(t, FailureUnknown, f.Kind)
	assert.ErrorIs(t, f, context.DeadlineExceeded)
}

func TestFailure_Code(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want platformerrors.ErrorCode
	}{
		{kind: FailureNotConfigured, want: platformerrors.CodeInvalidConfig},
		{kind: FailureAccessDenied, want: platformerrors.CodeForbidden},
		{kind: FailureInvalidCredentials, want: platformerrors.CodeUnauthorized},
		{kind: FailureBucketMissing, want: platformerrors.CodeNotFound},
		{kind: FailureUnknown, want: platformerrors.CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			f := &Failure{Kind: tt.kind, Op: "put", Key: "k"}
			assert.Equal(t, tt.want, f.Code())
			assert.Contains(t, f.Error(), string(tt.kind))
		})
	}

	assert.Equal(t, FailureUnknown, KindOf(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}
