package dialog

import (
	"regexp"
	"strings"
	"time"

	model "github.com/takeawayhq/voicedesk/backend/internal/model/dialog"
	"github.com/takeawayhq/voicedesk/backend/internal/model/menu"
)

// Extractor grounds a raw utterance against the per-turn menu snapshot
// and writes any findings into the slot set. Each turn may fill several
// slots at once or none at all.
type Extractor struct {
	minLead time.Duration
}

// NewExtractor builds an extractor; minLead <= 0 selects the default
// ten-minute pickup lead.
func NewExtractor(minLead time.Duration) *Extractor {
	if minLead <= 0 {
		minLead = 10 * time.Minute
	}
	return &Extractor{minLead: minLead}
}

var (
	quantityPattern = regexp.MustCompile(`\b(\d{1,2})\b`)
	timePattern     = regexp.MustCompile(`\b(\d{1,2})[:.](\d{2})\b`)
	meridiemPattern = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
)

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

var negationWords = []string{"no", "not", "without", "none", "nothing", "plain"}

// Apply runs the full grounding pass: product, variant, quantity,
// modifiers, pickup time. negateIntent marks that the classifier already
// labelled the utterance as a negation.
func (e *Extractor) Apply(utterance string, snapshot []menu.SnapshotProduct, slots *model.SlotSet, now time.Time, negateIntent bool) {
	lower := strings.ToLower(utterance)
	compact := menu.NormalizeKey(utterance)

	e.matchProduct(lower, compact, snapshot, slots)
	e.matchVariant(lower, compact, snapshot, slots)
	e.parseQuantity(utterance, lower, slots)
	e.matchModifiers(lower, compact, snapshot, slots, negateIntent)
	e.parsePickupTime(lower, slots, now)
}

// phraseMatch implements the dual matching rule: exact-name substring on
// the case-folded utterance, or compact-form containment either way round.
func phraseMatch(lower, compact, name string) bool {
	if name == "" {
		return false
	}
	if strings.Contains(lower, strings.ToLower(name)) {
		return true
	}
	key := menu.NormalizeKey(name)
	if key == "" || compact == "" {
		return false
	}
	return strings.Contains(compact, key) || strings.Contains(key, compact)
}

func (e *Extractor) matchProduct(lower, compact string, snapshot []menu.SnapshotProduct, slots *model.SlotSet) {
	for _, p := range snapshot {
		if phraseMatch(lower, compact, p.Name) {
			slots.SetProduct(model.ProductSelection{ProductID: p.ID, Name: p.Name})
			return
		}
	}
}

func (e *Extractor) matchVariant(lower, compact string, snapshot []menu.SnapshotProduct, slots *model.SlotSet) {
	product := slots.Product()
	if product == nil {
		return
	}
	sp, ok := findSnapshotProduct(snapshot, product.ProductID)
	if !ok || len(sp.Variants) == 0 {
		return
	}

	if len(sp.Variants) == 1 {
		v := sp.Variants[0]
		slots.SetVariant(model.VariantSelection{VariantID: v.ID, Name: v.Name, ProductID: product.ProductID})
		return
	}

	for _, v := range sp.Variants {
		if phraseMatch(lower, compact, v.Name) {
			slots.SetVariant(model.VariantSelection{VariantID: v.ID, Name: v.Name, ProductID: product.ProductID})
			return
		}
	}

	if slots.Variant() == nil {
		for _, v := range sp.Variants {
			if v.IsDefault {
				slots.SetVariant(model.VariantSelection{VariantID: v.ID, Name: v.Name, ProductID: product.ProductID})
				return
			}
		}
	}
}

func (e *Extractor) parseQuantity(raw, lower string, slots *model.SlotSet) {
	for _, idx := range quantityPattern.FindAllStringSubmatchIndex(raw, -1) {
		start, end := idx[2], idx[3]
		// Skip digits that are part of a clock time such as 18:30.
		if start > 0 && (raw[start-1] == ':' || raw[start-1] == '.') {
			continue
		}
		if end < len(raw) && (raw[end] == ':' || raw[end] == '.') {
			continue
		}
		// Skip the hour of a spelled-out meridiem time such as "6 pm".
		rest := strings.ToLower(strings.TrimLeft(raw[end:], " "))
		if strings.HasPrefix(rest, "am") || strings.HasPrefix(rest, "pm") {
			continue
		}
		value := 0
		for _, c := range raw[start:end] {
			value = value*10 + int(c-'0')
		}
		if model.IsValidQuantity(value) {
			slots.SetQuantity(value)
			return
		}
	}

	for _, token := range strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if value, ok := numberWords[token]; ok && model.IsValidQuantity(value) {
			slots.SetQuantity(value)
			return
		}
	}
}

func (e *Extractor) matchModifiers(lower, compact string, snapshot []menu.SnapshotProduct, slots *model.SlotSet, negateIntent bool) {
	product := slots.Product()
	if product == nil {
		return
	}
	sp, ok := findSnapshotProduct(snapshot, product.ProductID)
	if !ok {
		return
	}

	if len(sp.Modifiers) == 0 {
		slots.MarkNoModifiers()
		return
	}

	matched := make([]model.ModifierSelection, 0, len(sp.Modifiers))
	for _, m := range sp.Modifiers {
		if phraseMatch(lower, compact, m.Name) {
			matched = append(matched, model.ModifierSelection{ModifierID: m.ID, Name: m.Name, ProductID: product.ProductID})
		}
	}

	if len(matched) > 0 {
		slots.SetModifiers(mergeModifiers(slots.Modifiers(), matched))
		return
	}

	if slots.ModifiersFilled() {
		return
	}
	if negateIntent || containsWord(lower, negationWords) {
		slots.MarkNoModifiers()
	}
}

func mergeModifiers(existing, incoming []model.ModifierSelection) []model.ModifierSelection {
	merged := append([]model.ModifierSelection(nil), existing...)
	for _, m := range incoming {
		seen := false
		for _, have := range merged {
			if have.ModifierID == m.ModifierID {
				seen = true
				break
			}
		}
		if !seen {
			merged = append(merged, m)
		}
	}
	return merged
}

func (e *Extractor) parsePickupTime(lower string, slots *model.SlotSet, now time.Time) {
	hour, minute, ok := parseClockTime(lower)
	if !ok {
		return
	}

	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if candidate.Before(now) {
		candidate = candidate.Add(24 * time.Hour)
	}

	if model.IsValidPickupTime(candidate, now, e.minLead) {
		slots.SetPickupTime(candidate)
	}
}

func parseClockTime(lower string) (hour, minute int, ok bool) {
	if m := meridiemPattern.FindStringSubmatch(lower); m != nil {
		hour = atoi(m[1])
		if m[2] != "" {
			minute = atoi(m[2])
		}
		if hour >= 1 && hour <= 12 && minute < 60 {
			if m[3] == "pm" && hour != 12 {
				hour += 12
			}
			if m[3] == "am" && hour == 12 {
				hour = 0
			}
			return hour, minute, true
		}
		return 0, 0, false
	}

	if m := timePattern.FindStringSubmatch(lower); m != nil {
		hour = atoi(m[1])
		minute = atoi(m[2])
		if hour < 24 && minute < 60 {
			return hour, minute, true
		}
	}

	return 0, 0, false
}

func atoi(s string) int {
	value := 0
	for _, c := range s {
		value = value*10 + int(c-'0')
	}
	return value
}

func containsWord(lower string, words []string) bool {
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
	for _, token := range tokens {
		for _, word := range words {
			if token == word {
				return true
			}
		}
	}
	return false
}

func findSnapshotProduct(snapshot []menu.SnapshotProduct, productID int) (menu.SnapshotProduct, bool) {
	for _, p := range snapshot {
		if p.ID == productID {
			return p, true
		}
	}
	return menu.SnapshotProduct{}, false
}
