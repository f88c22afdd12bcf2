package storage

import (
	"context"
	"time"

	"github.com/imprenta-ai/flexoplan/flexoplan"
)

// SeedDemo loads a small but representative plant: three compatible
// presses with different ink capacities and a mixed bag of orders
// covering forced dates, overdue jobs and an ink-capacity violation.
func SeedDemo(ctx context.Context, w Writer) error {
	now := time.Now().UTC()
	machines := []flexoplan.Machine{
		{
			ID: 1, Name: "Bobst M5", Pseudonym: "flexo-1",
			Inks: 8, FunctionalInks: 6, AvgVelocity: 150, TimeChangeUnits: 15,
			Status: flexoplan.StatusActive, ShareRolls: `["2", "3"]`,
		},
		{
			ID: 2, Name: "Nilpeter FA-4", Pseudonym: "flexo-2",
			Inks: 8, FunctionalInks: 8, AvgVelocity: 180, TimeChangeUnits: 12,
			Status: flexoplan.StatusActive, ShareRolls: `["1"]`,
		},
		{
			ID: 3, Name: "Mark Andy P7", Pseudonym: "flexo-3",
			Inks: 6, FunctionalInks: 4, AvgVelocity: 120, TimeChangeUnits: 20,
			Status: flexoplan.StatusMaintenance, ShareRolls: `["1"]`,
		},
	}
	for _, m := range machines {
		if err := w.PutMachine(ctx, m); err != nil {
			return err
		}
	}

	forced := now.Add(48 * time.Hour)
	orders := []flexoplan.Order{
		{
			ID: 101, ProductName: "Olive oil 750ml", Status: 2, MachineID: 1,
			TotalMeters: 2400, NumLabels: 3, DaysRemaining: intp(5),
			Colors:       `["cyan", "magenta", "yellow", "black"]`,
			Materials:    `["pp-white"]`,
			CustomerData: `{"customer_id": 7}`,
		},
		{
			ID: 102, ProductName: "Olive oil 250ml", Status: 2, MachineID: 1,
			TotalMeters: 900, NumLabels: 1, DaysRemaining: intp(5),
			Colors:       `["cyan", "magenta", "yellow", "black"]`,
			Materials:    `["pp-white"]`,
			CustomerData: `{"customer_id": 7}`,
		},
		{
			ID: 103, ProductName: "Craft beer IPA", Status: 3, MachineID: 1,
			TotalMeters: 5200, NumLabels: 4, DaysRemaining: intp(-2),
			Colors:       `["black", "gold", "red"]`,
			Materials:    `["paper-matte"]`,
			CustomerData: `{"customer_id": 12}`,
		},
		{
			ID: 104, ProductName: "Honey jar premium", Status: 2, MachineID: 1,
			TotalMeters: 1600, NumLabels: 2, DaysRemaining: intp(1),
			ForcedDeliveryDate: &forced,
			Colors:             `["gold", "black"]`,
			Materials:          `["paper-texture"]`,
			CustomerData:       `{"customer_id": 3}`,
		},
		{
			ID: 105, ProductName: "Wine reserve 2019", Status: 2, MachineID: 1,
			TotalMeters: 3100, NumLabels: 2, DaysRemaining: intp(-40),
			Colors:       `["burgundy", "gold", "black", "white", "green", "silver", "uv"]`,
			Materials:    `["paper-cream"]`,
			CustomerData: `{"customer_id": 9}`,
		},
		{
			ID: 106, ProductName: "Cosmetic serum", Status: 2, MachineID: 2,
			TotalMeters: 1200, NumLabels: 1, DaysRemaining: intp(10),
			Colors:       `["white", "silver"]`,
			Materials:    `["pet-clear"]`,
			CustomerData: `{"customer_id": 21}`,
		},
		{
			ID: 107, ProductName: "Cosmetic cream", Status: 2, MachineID: 2,
			TotalMeters: 1800, NumLabels: 2, DaysRemaining: intp(3),
			Colors:       `["white", "silver", "pink"]`,
			Materials:    `["pet-clear"]`,
			CustomerData: `{"customer_id": 21}`,
		},
		{
			ID: 108, ProductName: "Sparkling water", Status: 2, MachineID: 2,
			TotalMeters: 7000, NumLabels: 5, DaysRemaining: intp(14),
			Colors:       `["blue", "white"]`,
			Materials:    `["pp-clear"]`,
			CustomerData: `{"customer_id": 2}`,
		},
		{
			ID: 109, ProductName: "Completed legacy job", Status: 7, MachineID: 1,
			TotalMeters: 500, NumLabels: 1,
			Colors:    `["black"]`,
			Materials: `["paper-matte"]`,
		},
		{
			ID: 110, ProductName: "Jam assortment", Status: 2, MachineID: 3,
			TotalMeters: 2000, NumLabels: 6, DaysRemaining: intp(8),
			Colors:       `["red", "orange", "purple", "black"]`,
			Materials:    `["paper-gloss"]`,
			CustomerData: `{"customer_id": 5}`,
		},
	}
	for _, o := range orders {
		if err := w.PutOrder(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

func intp(v int) *int {
	return &v
}
