package grocery

import "strings"

// Categorize suggests a base category for an item name. It performs
// case-insensitive matching: exact match first, then substring match.
// Falls back to "other" if no match is found.
func Categorize(itemName string) string {
	name := strings.Join(strings.Fields(strings.ToLower(itemName)), " ")
	if name == "" {
		return "other"
	}

	// Phase 1: exact match
	if cat, ok := exactMatch[name]; ok {
		return cat
	}

	// Phase 2: substring match (ordered longer/more-specific first)
	for _, entry := range substringMatches {
		if strings.Contains(name, entry.keyword) {
			return entry.category
		}
	}

	return "other"
}

var exactMatch = map[string]string{
	// Fruit
	"apple":        "fruit",
	"apples":       "fruit",
	"banana":       "fruit",
	"bananas":      "fruit",
	"orange":       "fruit",
	"oranges":      "fruit",
	"lemon":        "fruit",
	"lemons":       "fruit",
	"lime":         "fruit",
	"limes":        "fruit",
	"avocado":      "fruit",
	"avocados":     "fruit",
	"grapes":       "fruit",
	"strawberries": "fruit",
	"blueberries":  "fruit",
	"raspberries":  "fruit",
	"watermelon":   "fruit",
	"pineapple":    "fruit",
	"mango":        "fruit",
	"peach":        "fruit",
	"peaches":      "fruit",
	"pear":         "fruit",
	"pears":        "fruit",
	"cherries":     "fruit",

	// Vegetables
	"tomato":      "vegetables",
	"tomatoes":    "vegetables",
	"potato":      "vegetables",
	"potatoes":    "vegetables",
	"onion":       "vegetables",
	"onions":      "vegetables",
	"garlic":      "vegetables",
	"lettuce":     "vegetables",
	"spinach":     "vegetables",
	"kale":        "vegetables",
	"broccoli":    "vegetables",
	"carrots":     "vegetables",
	"celery":      "vegetables",
	"cucumber":    "vegetables",
	"cucumbers":   "vegetables",
	"peppers":     "vegetables",
	"mushrooms":   "vegetables",
	"corn":        "vegetables",
	"cilantro":    "vegetables",
	"zucchini":    "vegetables",
	"asparagus":   "vegetables",
	"green beans": "vegetables",

	// Dairy
	"milk":           "dairy",
	"eggs":           "dairy",
	"butter":         "dairy",
	"cheese":         "dairy",
	"yogurt":         "dairy",
	"cream":          "dairy",
	"sour cream":     "dairy",
	"cream cheese":   "dairy",
	"half and half":  "dairy",
	"cottage cheese": "dairy",

	// Meat
	"chicken": "meat",
	"beef":    "meat",
	"pork":    "meat",
	"bacon":   "meat",
	"sausage": "meat",
	"steak":   "meat",
	"turkey":  "meat",
	"ham":     "meat",
	"salmon":  "meat",
	"shrimp":  "meat",
	"tuna":    "meat",
	"brisket": "meat",

	// Utility
	"paper towels":  "utility",
	"toilet paper":  "utility",
	"trash bags":    "utility",
	"dish soap":     "utility",
	"detergent":     "utility",
	"sponges":       "utility",
	"aluminum foil": "utility",
	"batteries":     "utility",
	"light bulbs":   "utility",
	"shampoo":       "utility",
	"toothpaste":    "utility",
}

var substringMatches = []struct {
	keyword  string
	category string
}{
	// Meat
	{"ground beef", "meat"},
	{"chicken", "meat"},
	{"beef", "meat"},
	{"pork", "meat"},
	{"steak", "meat"},
	{"bacon", "meat"},
	{"sausage", "meat"},
	{"turkey", "meat"},
	{"salmon", "meat"},
	{"shrimp", "meat"},
	{"fish", "meat"},
	{"ribs", "meat"},

	// Dairy
	{"cream cheese", "dairy"},
	{"sour cream", "dairy"},
	{"milk", "dairy"},
	{"cheese", "dairy"},
	{"yogurt", "dairy"},
	{"butter", "dairy"},
	{"egg", "dairy"},

	// Fruit
	{"berries", "fruit"},
	{"berry", "fruit"},
	{"apple", "fruit"},
	{"banana", "fruit"},
	{"grape", "fruit"},
	{"melon", "fruit"},
	{"citrus", "fruit"},

	// Vegetables
	{"lettuce", "vegetables"},
	{"spinach", "vegetables"},
	{"potato", "vegetables"},
	{"onion", "vegetables"},
	{"pepper", "vegetables"},
	{"carrot", "vegetables"},
	{"celery", "vegetables"},
	{"broccoli", "vegetables"},
	{"salad", "vegetables"},
	{"veggie", "vegetables"},

	// Utility
	{"paper towel", "utility"},
	{"toilet paper", "utility"},
	{"trash bag", "utility"},
	{"garbage bag", "utility"},
	{"dish soap", "utility"},
	{"laundry", "utility"},
	{"detergent", "utility"},
	{"cleaner", "utility"},
	{"sponge", "utility"},
	{"foil", "utility"},
	{"plastic wrap", "utility"},
	{"battery", "utility"},
	{"light bulb", "utility"},
	{"shampoo", "utility"},
	{"soap", "utility"},
}
