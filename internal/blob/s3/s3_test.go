package s3blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

const listXML = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>reports</Name>
  <Prefix>league-1/</Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>league-1/b.json</Key><LastModified>2025-11-05T12:00:00.000Z</LastModified><Size>20</Size></Contents>
  <Contents><Key>league-1/a.json</Key><LastModified>2025-11-05T11:00:00.000Z</LastModified><Size>10</Size></Contents>
</ListBucketResult>`

const noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

type fakeS3 struct {
	mu      sync.Mutex
	puts    map[string]string
	types   map[string]string
	objects map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.puts[r.URL.Path] = string(body)
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, listXML)
	case r.Method == http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, noSuchKeyXML)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeS3) {
	t.Helper()
	fake := &fakeS3{puts: map[string]string{}, types: map[string]string{}, objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), ClientConfig{
		Endpoint:       srv.URL,
		Region:         "us-east-1",
		Bucket:         "reports",
		AccessKey:      "test",
		SecretKey:      "test",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	return c, fake
}

func TestNewRequiresBucketAndRegion(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	assert.ErrorContains(t, err, "bucket")

	_, err = New(context.Background(), ClientConfig{Bucket: "b"})
	assert.ErrorContains(t, err, "region")
}

func TestWriterPut(t *testing.T) {
	c, fake := newTestClient(t)

	err := NewWriter(c).Put(context.Background(), "league-1/run.json", strings.NewReader(`{"run_id":"r1"}`), "application/json")
	require.NoError(t, err)

	assert.Contains(t, fake.puts["/reports/league-1/run.json"], `{"run_id":"r1"}`)
	assert.Equal(t, "application/json", fake.types["/reports/league-1/run.json"])
}

func TestReaderGet(t *testing.T) {
	c, fake := newTestClient(t)
	fake.objects["/reports/league-1/a.json"] = `{"ok":true}`
	r := NewReader(c)

	rc, err := r.Get(context.Background(), "league-1/a.json")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))

	_, err = r.Get(context.Background(), "league-1/missing.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReaderListSortsByPath(t *testing.T) {
	c, _ := newTestClient(t)

	infos, err := NewReader(c).List(context.Background(), "league-1/")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "league-1/a.json", infos[0].Path)
	assert.Equal(t, int64(10), infos[0].Size)
	assert.Equal(t, 11, infos[0].LastModified.Hour())
	assert.Equal(t, "league-1/b.json", infos[1].Path)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("http://localhost:9000", true))
}
