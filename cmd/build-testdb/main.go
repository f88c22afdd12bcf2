package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/imprenta-ai/flexoplan/flexoplan/storage"
)

func main() {
	outputPath := flag.String("out", "flexoplan.db", "output database path")
	flag.Parse()

	fmt.Printf("Building demo database: %s\n", *outputPath)

	store, err := storage.NewBadgerStore(*outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if err := storage.SeedDemo(ctx, store); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to seed database: %v\n", err)
		os.Exit(1)
	}

	machines, err := store.GetAllMachineStatus(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read back machines: %v\n", err)
		os.Exit(1)
	}
	orders, err := store.GetSchedulableOrdersForAllMachines(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read back orders: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  Machines: %d\n", len(machines))
	fmt.Printf("  Schedulable orders: %d\n", len(orders))

	fmt.Println("\n✅ Done! Plan a machine with:")
	fmt.Printf("   go run ./cmd/flexoplan -db %s -machine 1\n", *outputPath)
}
