package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tinybots "github.com/ahbrosha/tiny-bots"
)

func main() {
	// start mock shops (see mock_server.go); "Alpha" never restocks
	go StartMockShopServer(":9999", "Alpha")
	time.Sleep(100 * time.Millisecond)

	// grid: 2 shops from one declaration, checked in order
	vendors, err := tinybots.NewVendorGrid("Mock",
		tinybots.WithURLTemplate("http://localhost:9999/product?shop={{.shop}}"),
		tinybots.WithDimensions(map[string][]string{
			"shop": {"Alpha", "Beta"},
		}),
		tinybots.WithGridDetector(tinybots.SelectorDetector(".available_stock")),
	)
	if err != nil {
		slog.Error("failed to create vendor grid", "error", err)
		os.Exit(1)
	}

	src, err := tinybots.NewHTTPSource(vendors)
	if err != nil {
		slog.Error("failed to create source", "error", err)
		os.Exit(1)
	}
	defer src.Close()

	// print instead of sending mail
	printer := tinybots.NotifierFunc(func(_ context.Context, n tinybots.Notification) error {
		fmt.Printf("\n  >>> %s\n  >>> %s\n\n", n.Subject, n.Text)
		return nil
	})

	w, err := tinybots.New(src,
		tinybots.WithName("Mock card"),
		tinybots.WithInterval(5*time.Second),
		tinybots.WithJitter(0, 2*time.Second),
		tinybots.WithNotifier(printer),
		tinybots.WithStatusAddr(":8080"),
	)
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  tinybots demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 to follow the watch.")
	fmt.Println("  Mock (Alpha) stays sold out, Mock (Beta) restocks within a minute.")
	fmt.Println("  Press Ctrl+C to stop.")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := w.Run(ctx); err != nil {
		slog.Info("watch stopped", "reason", err)
	}
}
