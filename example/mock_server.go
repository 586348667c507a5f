package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mockShop tracks when a product page flips to in stock.
type mockShop struct {
	mu           sync.Mutex
	restockAt    map[string]time.Time
	neverRestock map[string]bool
}

// StartMockShopServer runs a mock shop. Product pages at /product?shop=X
// show "Ausverkauft" until a random restock 20-60 seconds after the first
// request, then an in-stock badge. Shops listed in soldOut never restock.
// Call this in a goroutine before creating the watcher.
func StartMockShopServer(addr string, soldOut ...string) {
	shop := &mockShop{
		restockAt:    make(map[string]time.Time),
		neverRestock: make(map[string]bool),
	}
	for _, s := range soldOut {
		shop.neverRestock[s] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/product", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("shop")

		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		inStock := shop.inStock(name)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if inStock {
			fmt.Fprintf(w, `<html><body><h1>%s</h1><span class="available_stock">Auf Lager</span></body></html>`, name)
			return
		}
		fmt.Fprintf(w, `<html><body><h1>%s</h1><span class="sold-out">Ausverkauft</span></body></html>`, name)
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}

func (s *mockShop) inStock(name string) bool {
	if s.neverRestock[name] {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.restockAt[name]
	if !ok {
		at = time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
		s.restockAt[name] = at
		slog.Info("restock scheduled", "shop", name, "at", at.Format(time.TimeOnly))
	}
	return time.Now().After(at)
}
