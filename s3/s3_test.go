package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/zoobzio/meld"
)

// mockAPI implements API for testing, recording multipart calls.
type mockAPI struct {
	objects map[string][]byte

	copies      []*s3.UploadPartCopyInput
	created     *s3.CreateMultipartUploadInput
	completed   *s3.CompleteMultipartUploadInput
	aborted     bool
	copyErr     error
	copyErrAt   int
	completeErr error
}

func newMockAPI() *mockAPI {
	return &mockAPI{objects: make(map[string][]byte), copyErrAt: -1}
}

func (m *mockAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockAPI) UploadPart(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return &s3.UploadPartOutput{ETag: aws.String("part")}, nil
}

func (m *mockAPI) UploadPartCopy(_ context.Context, in *s3.UploadPartCopyInput, _ ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error) {
	if m.copyErr != nil && len(m.copies) == m.copyErrAt {
		return nil, m.copyErr
	}
	m.copies = append(m.copies, in)
	return &s3.UploadPartCopyOutput{
		CopyPartResult: &types.CopyPartResult{ETag: aws.String("etag-" + aws.ToString(in.CopySource))},
	}, nil
}

func (m *mockAPI) CreateMultipartUpload(_ context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	m.created = in
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
}

func (m *mockAPI) CompleteMultipartUpload(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	m.completed = in
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (m *mockAPI) AbortMultipartUpload(_ context.Context, _ *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	m.aborted = true
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestClient_Compose(t *testing.T) {
	api := newMockAPI()
	client := New(api)
	ctx := context.Background()

	entries := []meld.Entry{{Name: "a.txt"}, {Name: "dir/b c.txt"}, {Name: "c.txt"}}
	if err := client.Compose(ctx, entries, "/bucket/out.txt", "text/plain"); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if aws.ToString(api.created.ContentType) != "text/plain" {
		t.Errorf("unexpected content type: %q", aws.ToString(api.created.ContentType))
	}
	if aws.ToString(api.created.Key) != "out.txt" {
		t.Errorf("unexpected key: %q", aws.ToString(api.created.Key))
	}

	wantSources := []string{"bucket/a.txt", "bucket/dir/b%20c.txt", "bucket/c.txt"}
	if len(api.copies) != len(wantSources) {
		t.Fatalf("expected %d copies, got %d", len(wantSources), len(api.copies))
	}
	for i, want := range wantSources {
		if got := aws.ToString(api.copies[i].CopySource); got != want {
			t.Errorf("copy %d: source %q, want %q", i, got, want)
		}
		if got := aws.ToInt32(api.copies[i].PartNumber); got != int32(i+1) {
			t.Errorf("copy %d: part number %d", i, got)
		}
	}

	parts := api.completed.MultipartUpload.Parts
	if len(parts) != 3 {
		t.Fatalf("expected 3 completed parts, got %d", len(parts))
	}
	if aws.ToString(parts[1].ETag) != "etag-bucket/dir/b%20c.txt" {
		t.Errorf("unexpected etag: %q", aws.ToString(parts[1].ETag))
	}
	if api.aborted {
		t.Error("upload should not be aborted")
	}
}

func TestClient_Compose_Metadata(t *testing.T) {
	api := newMockAPI()
	client := New(api)

	entries := []meld.Entry{
		{Name: "a", Metadata: map[string]string{MetaVersionID: "v1", MetaIfMatch: "abc"}},
		{Name: "b"},
	}
	if err := client.Compose(context.Background(), entries, "/bucket/out", ""); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if got := aws.ToString(api.copies[0].CopySource); got != "bucket/a?versionId=v1" {
		t.Errorf("unexpected copy source: %q", got)
	}
	if got := aws.ToString(api.copies[0].CopySourceIfMatch); got != "abc" {
		t.Errorf("unexpected if-match: %q", got)
	}
	if api.copies[1].CopySourceIfMatch != nil {
		t.Error("expected no if-match on second part")
	}
	if api.created.ContentType != nil {
		t.Error("expected no content type")
	}
}

func TestClient_Compose_AbortsOnFailure(t *testing.T) {
	t.Run("part copy", func(t *testing.T) {
		api := newMockAPI()
		api.copyErr = &types.NoSuchKey{}
		api.copyErrAt = 1

		err := New(api).Compose(context.Background(), []meld.Entry{{Name: "a"}, {Name: "b"}}, "/bucket/out", "")
		if !errors.Is(err, meld.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if !api.aborted {
			t.Error("expected upload to be aborted")
		}
		if api.completed != nil {
			t.Error("upload should not be completed")
		}
	})

	t.Run("complete", func(t *testing.T) {
		api := newMockAPI()
		api.completeErr = errors.New("boom")

		err := New(api).Compose(context.Background(), []meld.Entry{{Name: "a"}, {Name: "b"}}, "/bucket/out", "")
		if err == nil || !strings.Contains(err.Error(), "boom") {
			t.Errorf("expected boom, got %v", err)
		}
		if !api.aborted {
			t.Error("expected upload to be aborted")
		}
	})
}

func TestClient_Compose_InvalidDestination(t *testing.T) {
	api := newMockAPI()
	err := New(api).Compose(context.Background(), []meld.Entry{{Name: "a"}, {Name: "b"}}, "bucket/out", "")
	if !errors.Is(err, meld.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
	if api.created != nil {
		t.Error("no upload should be started")
	}
}

func TestStore_Open(t *testing.T) {
	api := newMockAPI()
	api.objects["bucket/a"] = []byte("AA")
	store := NewStore(api)
	ctx := context.Background()

	t.Run("existing", func(t *testing.T) {
		r, err := store.Open(ctx, "/bucket/a")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer func() { _ = r.Close() }()
		data, _ := io.ReadAll(r)
		if string(data) != "AA" {
			t.Errorf("unexpected content: %q", string(data))
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := store.Open(ctx, "/bucket/missing")
		if !errors.Is(err, meld.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_Create(t *testing.T) {
	api := newMockAPI()
	store := NewStore(api)

	w, err := store.Create(context.Background(), "/bucket/out", "text/plain")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if string(api.objects["bucket/out"]) != "hello" {
		t.Errorf("unexpected content: %q", string(api.objects["bucket/out"]))
	}
}

func TestStore_LocalCompose(t *testing.T) {
	api := newMockAPI()
	api.objects["bucket/a"] = []byte("AA")
	api.objects["bucket/b"] = []byte("BB")

	d := meld.New(meld.WithMode(meld.ModeLocal), meld.WithStore(NewStore(api)))
	if err := d.Compose(context.Background(), []string{"a", "b"}, "/bucket/ab"); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if string(api.objects["bucket/ab"]) != "AABB" {
		t.Errorf("expected AABB, got %q", string(api.objects["bucket/ab"]))
	}
}
