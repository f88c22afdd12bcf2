package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/imprenta-ai/flexoplan/flexoplan"
	"github.com/imprenta-ai/flexoplan/flexoplan/annotations"
	"github.com/imprenta-ai/flexoplan/flexoplan/config"
	"github.com/imprenta-ai/flexoplan/flexoplan/service"
	"github.com/imprenta-ai/flexoplan/flexoplan/storage"
)

func main() {
	var dbPath string
	var machineRef string
	var all bool
	var prioritize int
	var reoptimize bool
	var recalc bool
	var showQueue bool
	var seed bool
	var setStatus string
	var setInks int
	var verbose bool
	var help bool

	flag.StringVar(&dbPath, "db", "", "database path (default from FLEXOPLAN_DB_PATH)")
	flag.StringVar(&machineRef, "machine", "", "machine id, name or pseudonym")
	flag.BoolVar(&all, "all", false, "plan every active machine, rebalancing orders first")
	flag.IntVar(&prioritize, "prioritize", 0, "move an order to the front of its queue")
	flag.BoolVar(&reoptimize, "reoptimize", true, "re-run the optimizer where applicable")
	flag.BoolVar(&recalc, "recalc", false, "recalculate delivery dates without resequencing")
	flag.BoolVar(&showQueue, "queue", false, "print the machine's production queue")
	flag.BoolVar(&seed, "seed", false, "load demo machines and orders into the database")
	flag.StringVar(&setStatus, "set-status", "", "set machine status (active, maintenance, error, disabled)")
	flag.IntVar(&setInks, "set-inks", -1, "set machine functional ink count")
	flag.BoolVar(&verbose, "verbose", false, "verbose mode (show planning annotations)")
	flag.BoolVar(&help, "h", false, "show help")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "A production sequencing planner for flexographic printing.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -seed                          # Load demo data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -machine 1                     # Schedule machine 1\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -machine flexo-1 -queue        # Show its queue\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -all                           # Plan the whole fleet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -prioritize 104                # Pull order 104 forward\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -prioritize 104 -reoptimize=false\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -machine 1 -recalc             # Refresh delivery dates\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -machine 1 -set-status maintenance\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -machine 1 -set-inks 5 -verbose\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if dbPath == "" {
		dbPath = cfg.DBPath
	}

	store, err := storage.NewBadgerStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	var handler annotations.Handler
	if verbose {
		formatter := annotations.NewOutputFormatter(os.Stderr)
		handler = annotations.Handler(formatter.Handle)
	}

	svc := service.NewService(store, service.Options{
		Dates:   cfg.Dates,
		Weights: cfg.Weights,
		GA:      cfg.GA,
		Handler: handler,
	})

	ctx := context.Background()

	switch {
	case seed:
		if err := storage.SeedDemo(ctx, store); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
		fmt.Println("Demo data loaded.")

	case setStatus != "" || setInks >= 0:
		updateMachine(ctx, store, machineRef, setStatus, setInks)

	case showQueue:
		printQueue(ctx, store, machineRef)

	case recalc:
		requireMachine(machineRef)
		report(svc.RecalculateDeliveryDates(ctx, machineRef))

	case prioritize > 0:
		report(svc.PrioritizeOrder(ctx, prioritize, reoptimize))

	case all:
		report(svc.GenerateOptimalScheduleAllMachines(ctx, reoptimize))

	case machineRef != "":
		report(svc.GenerateOptimalSchedule(ctx, machineRef))

	default:
		flag.Usage()
		os.Exit(1)
	}
}

// report prints the outcome of a scheduling operation. Failures carry
// the same envelope as successes; the message is the envelope's.
func report(resp *service.Response, err error) {
	if resp == nil {
		log.Fatalf("Error: %v", err)
	}
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "Failed (%s): %s\n", resp.Action, resp.Message)
		os.Exit(1)
	}
	fmt.Println(resp.Message)
}

func requireMachine(ref string) {
	if strings.TrimSpace(ref) == "" {
		log.Fatal("A machine is required; use -machine")
	}
}

func printQueue(ctx context.Context, store storage.Store, machineRef string) {
	requireMachine(machineRef)

	machine := resolve(ctx, store, machineRef)
	queue, err := store.GetProductionQueueForMachine(ctx, machine.ID)
	if err != nil {
		log.Fatalf("Failed to read queue: %v", err)
	}
	fmt.Printf("Queue for %s (machine %d):\n\n", machine.Name, machine.ID)
	fmt.Println(service.QueueTable(queue))
}

func updateMachine(ctx context.Context, store storage.Store, machineRef, statusStr string, inks int) {
	requireMachine(machineRef)
	machine := resolve(ctx, store, machineRef)

	var status *flexoplan.MachineStatus
	if statusStr != "" {
		s := flexoplan.MachineStatus(statusStr)
		switch s {
		case flexoplan.StatusActive, flexoplan.StatusMaintenance, flexoplan.StatusError, flexoplan.StatusDisabled:
			status = &s
		default:
			log.Fatalf("Unknown status %q", statusStr)
		}
	}
	var functionalInks *int
	if inks >= 0 {
		functionalInks = &inks
	}

	if err := store.UpdateMachineStatus(ctx, machine.ID, status, functionalInks); err != nil {
		log.Fatalf("Failed to update machine: %v", err)
	}
	updated, err := store.GetMachineByID(ctx, machine.ID)
	if err != nil || updated == nil {
		log.Fatalf("Failed to re-read machine %d: %v", machine.ID, err)
	}
	fmt.Println(updated)
}

// resolve finds a machine by id, name or pseudonym or exits.
func resolve(ctx context.Context, store storage.Store, ref string) *flexoplan.Machine {
	machine, err := store.GetMachineByNameOrPseudonym(ctx, ref)
	if err != nil {
		log.Fatalf("Failed to look up machine: %v", err)
	}
	if machine == nil {
		var id int
		if _, scanErr := fmt.Sscanf(strings.TrimSpace(ref), "%d", &id); scanErr == nil {
			machine, err = store.GetMachineByID(ctx, id)
			if err != nil {
				log.Fatalf("Failed to look up machine: %v", err)
			}
		}
	}
	if machine == nil {
		log.Fatalf("Machine not found: %s", ref)
	}
	return machine
}
