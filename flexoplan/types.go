package flexoplan

import (
	"fmt"
	"time"
)

// MachineStatus is the operational state of a printing machine.
// Only active machines participate in scheduling.
type MachineStatus string

const (
	StatusActive      MachineStatus = "active"
	StatusMaintenance MachineStatus = "maintenance"
	StatusError       MachineStatus = "error"
	StatusDisabled    MachineStatus = "disabled"
)

// Machine describes a flexographic printing machine.
type Machine struct {
	ID              int           `json:"id"`
	Name            string        `json:"name"`
	Pseudonym       string        `json:"pseudonym,omitempty"`
	Inks            int           `json:"inks"`            // nominal ink units
	FunctionalInks  int           `json:"functional_inks"` // currently working ink units, <= Inks
	AvgVelocity     float64       `json:"avg_velocity"`    // meters per hour
	TimeChangeUnits float64       `json:"time_change_units"` // minutes per unit changeover
	Status          MachineStatus `json:"status"`
	ShareRolls      string        `json:"share_rolls,omitempty"` // JSON list of compatible machine ids
}

// EffectiveInks returns the ink capacity used for planning decisions.
// Machines that never reported a functional count fall back to the
// nominal count.
func (m Machine) EffectiveInks() int {
	if m.FunctionalInks > 0 {
		return m.FunctionalInks
	}
	return m.Inks
}

// Order is the schedulable view of a production order. The Colors,
// Materials and CustomerData fields carry raw JSON exactly as the order
// system emits them; EnrichedOrder parses them once.
type Order struct {
	ID                 int        `json:"id"`
	ProductName        string     `json:"product_name"`
	Status             int        `json:"status"` // > 5 means no longer schedulable
	DeliveryDate       *time.Time `json:"delivery_date,omitempty"`
	ForcedDeliveryDate *time.Time `json:"forced_delivery_date,omitempty"`
	PlanningPriority   int        `json:"planning_priority"`
	DaysRemaining      *int       `json:"days_remaining,omitempty"` // negative = overdue
	TotalMeters        float64    `json:"total_meters"`
	NumLabels          int        `json:"num_labels"`
	Colors             string     `json:"colors,omitempty"`    // JSON list of color tokens
	Materials          string     `json:"materials,omitempty"` // JSON list of material tokens
	CustomerData       string     `json:"customer_data,omitempty"`
	TotalNetWeight     float64    `json:"total_net_weight"`
	MachineID          int        `json:"machine_id"` // current assignment
}

// Schedulable reports whether the order is still eligible for sequencing.
func (o Order) Schedulable() bool {
	return o.Status <= 5
}

// QueueRow is one persisted position in a machine's production queue.
// ProductionOrder is a dense 1-based rank within the machine.
type QueueRow struct {
	ID                   int64     `json:"id"`
	OrderID              int       `json:"order_id"`
	MachineID            int       `json:"machine_id"`
	ProductionOrder      int       `json:"production_order"`
	Reason               string    `json:"reason,omitempty"`
	ProbableDeliveryDate time.Time `json:"probable_delivery_date"`
	SetupMin             float64   `json:"setup_min"`
	InterLabelMin        float64   `json:"inter_label_changes_min"`
	PrintMin             float64   `json:"print_min"`
	BufferMin            float64   `json:"buffer_min"`
	TotalMin             float64   `json:"total_min"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// QueueOrder joins an order with its current queue position. It is the
// shape used when recalculating delivery dates without resequencing.
type QueueOrder struct {
	Order
	QueueRowID      int64 `json:"queue_row_id"`
	ProductionOrder int   `json:"production_order"`
}

func (m Machine) String() string {
	return fmt.Sprintf("Machine(%d %q %d/%d inks %s)", m.ID, m.Name, m.FunctionalInks, m.Inks, m.Status)
}
