package normalizer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical_Normalize(t *testing.T) {
	n := NewCanonical(map[string]string{"domates": "tomato"})

	p, err := n.Normalize(context.Background(), "tomato")
	require.NoError(t, err)
	assert.Equal(t, "tomato", p.ProductKey)
	assert.Equal(t, 1.0, p.Confidence)

	p, err = n.Normalize(context.Background(), "  Süt  Tam Yağlı ")
	require.NoError(t, err)
	assert.Equal(t, "sut_tam_yagli", p.ProductKey)
	assert.Equal(t, "Süt Tam Yağlı", p.DisplayName)
	assert.Equal(t, 0.9, p.Confidence)

	p, err = n.Normalize(context.Background(), "Domates")
	require.NoError(t, err)
	assert.Equal(t, "tomato", p.ProductKey)
	assert.Equal(t, 0.8, p.Confidence)

	_, err = n.Normalize(context.Background(), " -- ")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestHTTPNormalizer_UsesServiceThenFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"product_key":"white_bread","display_name":"White Bread","confidence":0.97}`))
	}))
	defer srv.Close()

	n := NewHTTPNormalizer(srv.URL, 0, nil)
	p, err := n.Normalize(context.Background(), "ekmek beyaz")
	require.NoError(t, err)
	assert.Equal(t, "white_bread", p.ProductKey)
	assert.Equal(t, 0.97, p.Confidence)

	srv.Close()
	p, err = n.Normalize(context.Background(), "Ekmek Beyaz")
	require.NoError(t, err)
	assert.Equal(t, "ekmek_beyaz", p.ProductKey)
}
