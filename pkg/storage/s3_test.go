package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// apiError implements smithy.APIError.
type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                 { return e.msg }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var (
	errNoSuchKey = &apiError{code: "NoSuchKey", msg: "no such key"}
	errNotFound  = &apiError{code: "NotFound", msg: "not found"}
)

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	lengths map[string]int64
	putErr  error
	getErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), lengths: make(map[string]int64)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = data
	if in.ContentLength != nil {
		f.lengths[*in.Key] = *in.ContentLength
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, errNotFound
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	return b, ok
}

func TestS3PutAndRead(t *testing.T) {
	fake := newFakeS3()
	store := NewS3(fake, "media", "uploads")
	ctx := context.Background()

	key := MediaKey(".mp3")
	n, err := Put(ctx, store, key, strings.NewReader("ID3 payload"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 11 {
		t.Fatalf("n = %d, want 11", n)
	}
	if got := fake.lengths["uploads/"+key]; got != 11 {
		t.Errorf("ContentLength = %d, want 11", got)
	}

	r, err := store.Read(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, _ := io.ReadAll(r)
	if string(got) != "ID3 payload" {
		t.Fatalf("got %q", got)
	}
}

func TestS3ObjectInvisibleUntilClose(t *testing.T) {
	fake := newFakeS3()
	store := NewS3(fake, "media", "")
	ctx := context.Background()

	w, err := store.Write(ctx, "a.wav")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "RIFF")
	if _, ok := fake.get("a.wav"); ok {
		t.Fatal("object visible before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.get("a.wav"); !ok {
		t.Fatal("object missing after Close")
	}
	if _, err := w.Write([]byte("x")); !errors.Is(err, os.ErrClosed) {
		t.Errorf("write after close: %v", err)
	}
}

func TestS3ReadNotExist(t *testing.T) {
	store := NewS3(newFakeS3(), "media", "")
	_, err := store.Read(context.Background(), "input_media/missing.wav")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestS3ReadOtherError(t *testing.T) {
	fake := newFakeS3()
	fake.getErr = errors.New("network timeout")
	store := NewS3(fake, "media", "")

	_, err := store.Read(context.Background(), "x")
	if err == nil || errors.Is(err, os.ErrNotExist) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestS3PutError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("upload failed")
	store := NewS3(fake, "media", "")

	_, err := Put(context.Background(), store, "x.wav", strings.NewReader("data"), 0)
	if err == nil || !strings.Contains(err.Error(), "upload failed") {
		t.Fatalf("err = %v, want upload failure", err)
	}
}

func TestS3ExistsAndDelete(t *testing.T) {
	store := NewS3(newFakeS3(), "media", "p")
	ctx := context.Background()

	if ok, err := store.Exists(ctx, "k"); err != nil || ok {
		t.Fatalf("Exists(missing) = %v, %v", ok, err)
	}
	if _, err := Put(ctx, store, "k", strings.NewReader("v"), 0); err != nil {
		t.Fatal(err)
	}
	if ok, err := store.Exists(ctx, "k"); err != nil || !ok {
		t.Fatalf("Exists(present) = %v, %v", ok, err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.Exists(ctx, "k"); ok {
		t.Fatal("object still exists after delete")
	}
}

func TestS3KeyMapping(t *testing.T) {
	tests := []struct {
		prefix, key, want string
		wantErr           bool
	}{
		{"", "a/b", "a/b", false},
		{"my/prefix", "file.bin", "my/prefix/file.bin", false},
		{"p", "a/./b", "p/a/b", false},
		{"p", "../escape", "", true},
		{"p", "/abs", "", true},
		{"p", "", "", true},
	}
	for _, tt := range tests {
		store := NewS3(newFakeS3(), "b", tt.prefix)
		got, err := store.key(tt.key)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("key(%q) err = %v, want ErrInvalidKey", tt.key, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, %v; want %q", tt.key, tt.prefix, got, err, tt.want)
		}
	}
}

func TestS3Localize(t *testing.T) {
	store := NewS3(newFakeS3(), "media", "")
	ctx := context.Background()
	if _, err := Put(ctx, store, "input_media/x.wav", strings.NewReader("RIFFdata"), 0); err != nil {
		t.Fatal(err)
	}

	p, cleanup, err := Localize(ctx, store, "input_media/x.wav")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(p, ".wav") {
		t.Errorf("temp path %q lost the extension", p)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "RIFFdata" {
		t.Fatalf("content = %q", b)
	}
	cleanup()
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("temp file not removed: %v", err)
	}
}

func TestIsS3NotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"NoSuchKey", errNoSuchKey, true},
		{"NotFound", errNotFound, true},
		{"other api error", &apiError{code: "AccessDenied", msg: "denied"}, false},
		{"plain error", errors.New("timeout"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isS3NotFound(tt.err); got != tt.want {
				t.Fatalf("isS3NotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewS3Client(t *testing.T) {
	c := NewS3Client(S3Options{
		Region:          "us-east-1",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		PathStyle:       true,
	})
	o := c.Options()
	if o.Region != "us-east-1" || !o.UsePathStyle {
		t.Fatalf("options = %+v", o)
	}
	if o.BaseEndpoint == nil || *o.BaseEndpoint != "http://127.0.0.1:9000" {
		t.Fatalf("BaseEndpoint = %v", o.BaseEndpoint)
	}
	creds, err := o.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if creds.AccessKeyID != "key" {
		t.Fatalf("AccessKeyID = %q", creds.AccessKeyID)
	}
}
