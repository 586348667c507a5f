// Standalone mock shop for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/tinybots watch -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"
)

func main() {
	fmt.Println("Mock shop starting on :9999")
	fmt.Println("/product?shop=X restocks 20-60s after its first request")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		restockAt = make(map[string]time.Time)
		mu        sync.Mutex
	)

	http.HandleFunc("/product", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("shop")

		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		mu.Lock()
		at, ok := restockAt[name]
		if !ok {
			at = time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
			restockAt[name] = at
			slog.Info("restock scheduled", "shop", name, "at", at.Format(time.TimeOnly))
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if time.Now().After(at) {
			fmt.Fprintf(w, `<span class="available_stock">%s: Auf Lager</span>`, name)
			return
		}
		fmt.Fprintf(w, `<span>%s: Ausverkauft</span>`, name)
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
