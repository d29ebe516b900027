package actor

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHeaders(t *testing.T) {
	h := http.Header{}
	assert.Nil(t, FromHeaders(h))

	h.Set(HeaderUserID, "u-1")
	h.Set(HeaderUserName, "Nguyễn Văn An")
	h.Set(HeaderUserEmail, "an@lab.vn")
	h.Set(HeaderUserRole, "technician")

	a := FromHeaders(h)
	require.NotNil(t, a)
	assert.Equal(t, "u-1", a.ID)
	assert.Equal(t, "Nguyễn Văn An (an@lab.vn)", a.String())
	assert.False(t, a.IsSystem())
}

func TestApply(t *testing.T) {
	a := &Actor{ID: "u-2", Name: "Trần Thị Bình"}
	h := http.Header{}
	a.Apply(h)

	assert.Equal(t, "u-2", h.Get(HeaderUserID))
	assert.Equal(t, "Trần Thị Bình", h.Get(HeaderUserName))
	assert.Empty(t, h.Get(HeaderUserEmail))

	var none *Actor
	none.Apply(h)
	assert.Equal(t, "u-2", h.Get(HeaderUserID))
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))
	assert.True(t, OrSystem(ctx).IsSystem())

	a := &Actor{ID: "u-3", Name: "Lê Minh"}
	ctx = WithActor(ctx, a)
	assert.Equal(t, a, FromContext(ctx))
	assert.Equal(t, a, OrSystem(ctx))
}
