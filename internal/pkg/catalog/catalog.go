package catalog

import (
	"strings"

	"github.com/jackmine/storefront/app/models"
	"github.com/jackmine/storefront/internal/pkg/entitlements"
)

// CategoryAll lists every item regardless of category.
const CategoryAll = "all"

const (
	CategoryWeapons  = "weapons"
	CategoryMobility = "mobility"
	CategoryUtility  = "utility"
	CategoryCommands = "commands"
)

// Item is a one-time purchase.
type Item struct {
	ID          string
	Name        string
	Description string
	Price       float64
	ImageURL    string
	Category    string
}

// KitEntry is one stack handed out with a plan's kit.
type KitEntry struct {
	Name     string
	Quantity int
}

// Plan is a subscription tier as sold in the store.
type Plan struct {
	ID          string
	Type        entitlements.Plan
	Title       string
	Description string
	Price       float64
	Days        int
	Kit         []KitEntry
}

// Purchasable reports whether the plan can be checked out.
func (p Plan) Purchasable() bool {
	return p.Price > 0
}

// Product is anything the checkout form can sell.
type Product struct {
	Type  string
	ID    string
	Name  string
	Price float64
}

var items = []Item{
	{
		ID:          "enchanted-diamond-sword",
		Name:        "Enchanted Diamond Sword",
		Description: "Sharpness V and Unbreaking III",
		Price:       15.00,
		ImageURL:    "/img/diamond_sword.svg",
		Category:    CategoryWeapons,
	},
	{
		ID:          "elytra",
		Name:        "Elytra",
		Description: "Take to the skies with this rare item",
		Price:       25.00,
		ImageURL:    "/img/elytra.svg",
		Category:    CategoryMobility,
	},
	{
		ID:          "enderchest",
		Name:        "Ender Chest",
		Description: "Reach your storage from anywhere",
		Price:       10.00,
		ImageURL:    "/img/enderchest.svg",
		Category:    CategoryUtility,
	},
	{
		ID:          "home-command",
		Name:        "Extra /home",
		Description: "One more home point to teleport to",
		Price:       8.00,
		ImageURL:    "/img/command.svg",
		Category:    CategoryCommands,
	},
	{
		ID:          "shulker-box",
		Name:        "Shulker Box",
		Description: "Portable storage for your items",
		Price:       12.00,
		ImageURL:    "/img/shulker.svg",
		Category:    CategoryUtility,
	},
	{
		ID:          "beacon",
		Name:        "Beacon",
		Description: "Status effects across an area",
		Price:       20.00,
		ImageURL:    "/img/beacon.svg",
		Category:    CategoryUtility,
	},
}

var categories = []string{CategoryAll, CategoryWeapons, CategoryMobility, CategoryUtility, CategoryCommands}

var plans = []Plan{
	{
		ID:          "free",
		Type:        entitlements.PlanFree,
		Title:       "FREE",
		Description: "Basic access with a starter kit and a few permissions.",
		Kit: []KitEntry{
			{"Oak Planks", 32}, {"Coal", 8}, {"Raw Copper", 16}, {"Stone Sword", 1},
			{"Wooden Pickaxe", 1}, {"Wooden Hoe", 1}, {"Wooden Shovel", 1}, {"Wooden Axe", 1},
			{"Leather Tunic", 1}, {"Leather Pants", 1}, {"Leather Cap", 1}, {"Bow", 1},
			{"Arrows", 10}, {"Glass", 16}, {"Bed", 1}, {"Torch", 1},
			{"Crafting Table", 1}, {"Furnace", 1},
		},
	},
	{
		ID:          models.SubscriptionTypeVIP,
		Type:        entitlements.PlanVIP,
		Title:       "VIP",
		Description: "Unlock useful items and exclusive permissions.",
		Price:       14.90,
		Days:        30,
		Kit: []KitEntry{
			{"Torches", 32}, {"Lanterns", 6}, {"Redstone Torches", 6}, {"Anvil", 1},
			{"Redstone Dust", 6}, {"Glass Packs", 2}, {"Glass", 128}, {"Planks", 128},
			{"Stripped Oak Logs", 64}, {"Oak Fences", 64}, {"Diamond Shovel", 1}, {"Diamond Pickaxe", 1},
			{"Diamond Axe", 1}, {"Diamond Hoe", 1}, {"Bucket", 1}, {"Shears", 1},
			{"Diamond Helmet", 1}, {"Diamond Chestplate", 1}, {"Diamond Leggings", 1}, {"Diamond Boots", 1},
			{"Iron Horse Armor", 1}, {"Bow", 1}, {"Arrows", 64}, {"Bread", 64},
			{"Diamonds", 16},
		},
	},
	{
		ID:          models.SubscriptionTypeTop,
		Type:        entitlements.PlanTop,
		Title:       "TOP",
		Description: "The full experience with rare items and every permission.",
		Price:       29.90,
		Days:        30,
		Kit: []KitEntry{
			{"Coal", 64}, {"Diamonds", 64}, {"Gold Ingots", 64}, {"Emeralds", 64},
			{"Nether Quartz", 64}, {"Enchanted Book (Unbreaking III)", 1}, {"Enchanted Book (Fortune III)", 1}, {"Redstone Dust", 64},
			{"Cooked Chicken", 64}, {"Cookies", 64}, {"Apples", 64}, {"Iron Ingots", 64},
			{"Fishing Rod", 1}, {"Bone Meal", 64}, {"Firework Rockets (Flight 1)", 32}, {"Shears", 1},
			{"Leggings", 1}, {"Diamond Sword", 1}, {"Diamond Helmet", 1}, {"Diamond Chestplate", 1},
			{"Diamond Leggings", 1}, {"Diamond Boots", 1}, {"Diamond Axe", 1}, {"Diamond Pickaxe", 1},
			{"Diamond Hoe", 1}, {"Diamond Shovel", 1},
		},
	},
}

// Items returns every item in display order.
func Items() []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// Categories returns the store filter tabs, "all" first.
func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

// NormalizeCategory maps unknown or empty input to CategoryAll.
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	for _, known := range categories {
		if c == known {
			return c
		}
	}
	return CategoryAll
}

// ItemsByCategory filters items; CategoryAll and unknown categories return everything.
func ItemsByCategory(category string) []Item {
	c := NormalizeCategory(category)
	if c == CategoryAll {
		return Items()
	}
	var out []Item
	for _, it := range items {
		if it.Category == c {
			out = append(out, it)
		}
	}
	return out
}

func FindItem(id string) (Item, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Plans returns FREE, VIP and TOP in ascending rank.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// FindPlan looks a plan up by its id ("free", "vip", "top").
func FindPlan(id string) (Plan, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PlanFor returns the catalog entry of an effective plan.
func PlanFor(p entitlements.Plan) Plan {
	for _, candidate := range plans {
		if candidate.Type == entitlements.Normalize(string(p)) {
			return candidate
		}
	}
	return plans[0]
}

// SubscriptionProduct returns the checkout product of a purchasable plan.
func SubscriptionProduct(planID string) (Product, bool) {
	p, ok := FindPlan(planID)
	if !ok || !p.Purchasable() {
		return Product{}, false
	}
	return Product{
		Type:  models.ProductTypeSubscription,
		ID:    p.ID,
		Name:  p.Title + " Monthly",
		Price: p.Price,
	}, true
}

// ItemProduct returns the checkout product of an item.
func ItemProduct(itemID string) (Product, bool) {
	it, ok := FindItem(itemID)
	if !ok {
		return Product{}, false
	}
	return Product{
		Type:  models.ProductTypeItem,
		ID:    it.ID,
		Name:  it.Name,
		Price: it.Price,
	}, true
}
