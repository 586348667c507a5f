// Package prices looks up trading card prices from the trader-online listing
// search.
package prices

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ahbrosha/tiny-bots/internal/poller"
)

// DefaultURL is the trader-online listing endpoint.
const DefaultURL = "https://www.trader-online.de/index.php"

// category id of the trading card listing
const categoryID = "13cb6f197d462358e248528973af6665"

const defaultTimeout = 15 * time.Second

// ErrNotFound is returned when the search yields no product.
var ErrNotFound = errors.New("no product found")

// rarityFilters maps display rarities to the shop's filter keys.
var rarityFilters = map[string]string{
	"Common":      "Common",
	"Rare":        "Rare",
	"Secret Rare": "Secret_Rare",
	"Starfoil":    "Starfoil",
	"Super Rare":  "Super_Rare",
	"Ultra Rare":  "Ultra_Rare",
}

// Rarities returns the supported rarity names.
func Rarities() []string {
	return []string{"Common", "Rare", "Secret Rare", "Starfoil", "Super Rare", "Ultra Rare"}
}

// Card is one priced listing.
type Card struct {
	Serial string
	Name   string
	Rarity string
	Price  float64
}

// Client queries the listing search.
type Client struct {
	http    *poller.Client
	baseURL string
}

// NewClient creates a [Client]. An empty baseURL means [DefaultURL].
func NewClient(httpClient *poller.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{http: httpClient, baseURL: baseURL}
}

// Lookup returns the first listing for serial filtered by rarity.
//
// Returns [ErrNotFound] when the search has no product, and a descriptive
// error when the product box lacks a name, rarity or price.
func (c *Client) Lookup(ctx context.Context, serial, rarity string) (Card, error) {
	filter, ok := rarityFilters[rarity]
	if !ok {
		return Card{}, fmt.Errorf("unknown rarity %q", rarity)
	}

	q := url.Values{}
	q.Set("lang", "1")
	q.Set("cl", "alist")
	q.Set("searchparam", serial)
	q.Set("cnid", categoryID)
	q.Set("attrfilter[Rarity]["+filter+"]", "1")
	q.Set("fnc", "executefilter")

	resp := c.http.Fetch(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil, defaultTimeout)
	if resp.Error != nil {
		return Card{}, fmt.Errorf("lookup %s: %w", serial, resp.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Card{}, fmt.Errorf("lookup %s: unexpected status %d", serial, resp.StatusCode)
	}

	card, err := parseListing(resp.Body)
	if err != nil {
		return Card{}, fmt.Errorf("lookup %s: %w", serial, err)
	}
	card.Serial = serial
	return card, nil
}

// parseListing reads the first product box of a listing page.
func parseListing(body []byte) (Card, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Card{}, fmt.Errorf("parse listing: %w", err)
	}

	box := doc.Find(".product-box").First()
	if box.Length() == 0 {
		return Card{}, ErrNotFound
	}

	name := strings.TrimSpace(box.Find(".title span").First().Text())
	if name == "" {
		return Card{}, errors.New("no card name in product box")
	}

	attrs := box.Find(".listattribut_left")
	if attrs.Length() < 2 {
		return Card{}, errors.New("no rarity in product box")
	}
	rarity := strings.TrimSpace(strings.Replace(attrs.Eq(1).Text(), "Rarity:", "", 1))

	pre := strings.TrimSpace(box.Find(".price-pre").First().Text())
	dec := strings.TrimSpace(strings.ReplaceAll(box.Find(".price-decimal").First().Text(), ",", ""))
	if pre == "" || dec == "" {
		return Card{}, errors.New("no price in product box")
	}

	whole, err := strconv.Atoi(pre)
	if err != nil {
		return Card{}, fmt.Errorf("invalid price %q: %w", pre, err)
	}
	cents, err := strconv.Atoi(dec)
	if err != nil {
		return Card{}, fmt.Errorf("invalid price decimals %q: %w", dec, err)
	}

	return Card{
		Name:   name,
		Rarity: rarity,
		Price:  float64(whole) + float64(cents)/100,
	}, nil
}
