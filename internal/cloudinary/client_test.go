package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := New("demo", "key", "secret", "avatars")
	c.BaseURL = srv.URL
	c.HTTP = srv.Client()
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestSign(t *testing.T) {
	c := New("demo", "key", "secret", "")
	got := c.sign(map[string]string{"timestamp": "1700000000", "folder": "avatars", "api_key": "key"})
	want := fmt.Sprintf("%x", sha1.Sum([]byte("folder=avatars&timestamp=1700000000secret")))
	assert.Equal(t, want, got)
}

func TestUploadMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/demo/image/upload", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "key", r.FormValue("api_key"))
		assert.Equal(t, "avatars", r.FormValue("folder"))
		assert.Equal(t, "1700000000", r.FormValue("timestamp"))
		assert.NotEmpty(t, r.FormValue("signature"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "ann.png", hdr.Filename)
		assert.Equal(t, "PNGDATA", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"public_id":"avatars/ann","secure_url":"https://res.example/ann.png","bytes":7}`))
	})

	res, err := c.Upload(context.Background(), strings.NewReader("PNGDATA"), "ann.png")
	require.NoError(t, err)
	assert.Equal(t, "https://res.example/ann.png", res.SecureURL)
	assert.Equal(t, 7, res.Bytes)
}

func TestUploadBase64(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "data:image/png;base64,AAAA", r.FormValue("file"))
		_, _ = w.Write([]byte(`{"secure_url":"https://res.example/b.png"}`))
	})

	res, err := c.UploadBase64(context.Background(), " data:image/png;base64,AAAA ")
	require.NoError(t, err)
	assert.Equal(t, "https://res.example/b.png", res.SecureURL)
}

func TestUploadErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid image file"}}`, http.StatusBadRequest)
	})

	_, err := c.UploadBase64(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = c.Upload(context.Background(), strings.NewReader(""), "x.png")
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = c.UploadBase64(context.Background(), "not-an-image")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload failed (400)")
}
