package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	id := uuid.MustParse("3f2a9c1e-0000-4000-8000-000000000001")
	p, err := s.Upload(ctx, "evidence", id, "my receipt.JPG", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "evidence/3f/3f2a9c1e-0000-4000-8000-000000000001_my_receipt.jpg", p)

	rc, err := s.Download(ctx, p)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, s.Delete(ctx, p))
	_, err = s.Download(ctx, p)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, p))
}

func TestLocalStorage_List(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Upload(ctx, "legal", uuid.New(), "consumer_protection_act.pdf", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = s.Upload(ctx, "legal", uuid.New(), "dgca_car.pdf", strings.NewReader("b"))
	require.NoError(t, err)
	_, err = s.Upload(ctx, "evidence", uuid.New(), "bill.png", strings.NewReader("c"))
	require.NoError(t, err)

	paths, err := s.List(ctx, "legal")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		assert.True(t, strings.HasPrefix(p, "legal/"))
	}

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	missing, err := s.List(ctx, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, p := range []string{"../secret", "evidence/../../etc/passwd", "/etc/passwd", "", `..\x`} {
		_, err := s.Download(ctx, p)
		assert.ErrorIs(t, err, ErrInvalidPath, p)
	}
	_, err = s.List(ctx, "../")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("act.PDF"))
	assert.Equal(t, "image/jpeg", ContentType("bill.jpeg"))
	assert.Equal(t, "image/png", ContentType("x.png"))
	assert.Equal(t, "application/octet-stream", ContentType("x.exe"))
}
