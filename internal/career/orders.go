package career

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/terra-clan/training-engine/internal/challenge"
	"github.com/terra-clan/training-engine/internal/models"
)

// XP thresholds, ascending
const (
	JourneymanXP = 1500
	MasterXP     = 4000
)

// TierFor derives the career tier from cumulative XP
func TierFor(xp int) models.CareerTier {
	switch {
	case xp >= MasterXP:
		return models.TierMaster
	case xp >= JourneymanXP:
		return models.TierJourneyman
	default:
		return models.TierApprentice
	}
}

// OrdersPerDay is determined solely by tier
func OrdersPerDay(tier models.CareerTier) int {
	switch tier {
	case models.TierMaster:
		return 5
	case models.TierJourneyman:
		return 4
	default:
		return 3
	}
}

// MaxDifficulty caps the task difficulty offered to a tier
func MaxDifficulty(tier models.CareerTier) int {
	switch tier {
	case models.TierMaster:
		return 3
	case models.TierJourneyman:
		return 2
	default:
		return 1
	}
}

type priorityRule struct {
	priority   models.Priority
	weight     int
	multiplier float64
}

var priorityTable = []priorityRule{
	{models.PriorityUrgent, 20, 1.5},
	{models.PriorityNormal, 50, 1.2},
	{models.PriorityFlexible, 30, 1.0},
}

var (
	customers = []string{
		"Alvarez Residence", "Brightline Dental", "Cedar Street Apartments", "Dunmore Bakery",
		"Eastgate Elementary", "Fulton Auto Repair", "Greenleaf Community Center", "Harbor View Condos",
	}
	streets   = []string{"Oak Ave", "Main St", "Industrial Pkwy", "Maple Dr", "Harbor Rd", "5th St"}
	siteTypes = []string{"residential", "commercial", "industrial", "institutional"}
)

// orderNamespace scopes deterministic work order ids
var orderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("trainer/work-orders"))

// GenerateOrders is the default OrderGenerator. It draws from SplitMix64
// seeded by the day number, so a restarted day offers the same orders on
// every platform and release.
func GenerateOrders(dayNumber int, tier models.CareerTier, defs []*models.TaskDefinition) []models.WorkOrder {
	maxDiff := MaxDifficulty(tier)
	pool := make([]*models.TaskDefinition, 0, len(defs))
	for _, def := range defs {
		if def.Difficulty <= maxDiff {
			pool = append(pool, def)
		}
	}
	if len(pool) == 0 {
		pool = defs
	}
	if len(pool) == 0 {
		return nil
	}

	rng := challenge.NewSplitMix64(uint64(dayNumber))
	n := OrdersPerDay(tier)
	orders := make([]models.WorkOrder, 0, n)
	for i := 0; i < n; i++ {
		def := pool[pick(rng, len(pool))]
		rule := pickPriority(pick(rng, 100))

		orders = append(orders, models.WorkOrder{
			ID:              uuid.NewSHA1(orderNamespace, []byte(fmt.Sprintf("day-%d-order-%d", dayNumber, i))).String(),
			Customer:        customers[pick(rng, len(customers))],
			Address:         fmt.Sprintf("%d %s", 100+pick(rng, 9900), streets[pick(rng, len(streets))]),
			TaskID:          def.ID,
			Priority:        rule.priority,
			XPReward:        def.XPReward + pick(rng, 5)*10,
			BonusMultiplier: rule.multiplier,
			SiteType:        siteTypes[pick(rng, len(siteTypes))],
		})
	}
	return orders
}

// pick returns a value in [0, n)
func pick(rng *challenge.SplitMix64, n int) int {
	return rng.Range(0, n-1)
}

func pickPriority(roll int) priorityRule {
	for _, r := range priorityTable {
		if roll < r.weight {
			return r
		}
		roll -= r.weight
	}
	return priorityTable[len(priorityTable)-1]
}
