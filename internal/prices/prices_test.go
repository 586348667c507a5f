package prices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ahbrosha/tiny-bots/internal/poller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<html><body>
<div class="product-box">
  <div class="title"><span> Blue-Eyes White Dragon </span></div>
  <ul>
    <li class="listattribut_left">Edition: 1. Auflage</li>
    <li class="listattribut_left">Rarity: Super Rare</li>
  </ul>
  <span class="price-pre">12</span><span class="price-decimal">,49</span>
</div>
<div class="product-box">
  <div class="title"><span>Second</span></div>
</div>
</body></html>`

func TestParseListing(t *testing.T) {
	card, err := parseListing([]byte(listingPage))
	require.NoError(t, err)

	assert.Equal(t, "Blue-Eyes White Dragon", card.Name)
	assert.Equal(t, "Super Rare", card.Rarity)
	assert.InDelta(t, 12.49, card.Price, 0.0001)
}

func TestParseListing_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no product", `<html><body><p>Keine Ergebnisse</p></body></html>`, ErrNotFound.Error()},
		{"no name", `<div class="product-box"><span class="price-pre">1</span></div>`, "no card name"},
		{"no rarity", `<div class="product-box"><div class="title"><span>X</span></div><li class="listattribut_left">a</li></div>`, "no rarity"},
		{"no price", `<div class="product-box"><div class="title"><span>X</span></div><li class="listattribut_left">a</li><li class="listattribut_left">b</li></div>`, "no price"},
		{"bad price", `<div class="product-box"><div class="title"><span>X</span></div><li class="listattribut_left">a</li><li class="listattribut_left">b</li><span class="price-pre">zwölf</span><span class="price-decimal">,00</span></div>`, "invalid price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseListing([]byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLookup(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	c := NewClient(poller.NewClient(poller.ClientOptions{}), srv.URL)
	card, err := c.Lookup(context.Background(), "BP01-DE003", "Super Rare")
	require.NoError(t, err)

	assert.Equal(t, "BP01-DE003", card.Serial)
	assert.Equal(t, []string{"BP01-DE003"}, query["searchparam"])
	assert.Equal(t, []string{"1"}, query["attrfilter[Rarity][Super_Rare]"])
	assert.Equal(t, []string{"executefilter"}, query["fnc"])
}

func TestLookup_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html></html>`))
	}))
	defer srv.Close()

	c := NewClient(poller.NewClient(poller.ClientOptions{}), srv.URL)
	_, err := c.Lookup(context.Background(), "XXX", "Common")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(poller.NewClient(poller.ClientOptions{}), srv.URL)

	_, err := c.Lookup(context.Background(), "XXX", "Common")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")

	_, err = c.Lookup(context.Background(), "XXX", "Mythic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rarity")
}

func TestRarities(t *testing.T) {
	for _, r := range Rarities() {
		_, ok := rarityFilters[r]
		assert.True(t, ok, r)
	}
	assert.Len(t, Rarities(), len(rarityFilters))
}
