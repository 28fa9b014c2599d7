package intent

import "strings"

// Intent labels shared by the heuristic and LLM classifiers and the
// dialog state machine guards.
const (
	LabelStartOrder    = "order.start"
	LabelAddItem       = "order.add_item"
	LabelModifyOrder   = "order.modify"
	LabelCancelOrder   = "order.cancel"
	LabelCheckStatus   = "order.check_status"
	LabelCompleteOrder = "order.complete"
	LabelAffirm        = "dialog.affirm"
	LabelNegate        = "dialog.negate"
	LabelGreeting      = "smalltalk.greeting"
	LabelFallback      = "fallback.unknown"
)

// All lists every label the classifiers may emit.
var All = []string{
	LabelStartOrder,
	LabelAddItem,
	LabelModifyOrder,
	LabelCancelOrder,
	LabelCheckStatus,
	LabelCompleteOrder,
	LabelAffirm,
	LabelNegate,
	LabelGreeting,
	LabelFallback,
}

// Known reports whether a label belongs to the catalog.
func Known(label string) bool {
	for _, l := range All {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// Prediction is the classifier output consumed by the dialog engine.
type Prediction struct {
	Label      string
	Confidence float64
	IsEnabled  bool
	Successful bool
}

// Disabled is the prediction returned when classification is turned off.
var Disabled = Prediction{}

// HasPrediction reports whether the prediction carries a usable label.
func (p Prediction) HasPrediction() bool {
	return p.IsEnabled && p.Successful && p.Label != ""
}

var keywordBuckets = map[string][]string{
	LabelGreeting: {
		"hi", "hello", "hey", "good morning", "good evening", "good afternoon",
	},
	LabelStartOrder: {
		"place an order", "start an order", "start my order", "new order",
		"i want to order", "like to order", "start ordering",
	},
	LabelAddItem: {
		"add a", "add an", "add the", "i would like", "i'd like", "get me",
		"can i have", "i'll take", "give me", "one more",
	},
	LabelModifyOrder: {
		"modify", "change", "swap", "edit", "instead of", "replace",
	},
	LabelCancelOrder: {
		"cancel",
	},
	LabelCheckStatus: {
		"status", "is my order ready", "where is my order", "check the order",
		"is it ready", "when is it ready",
	},
	LabelCompleteOrder: {
		"that's all", "that's it", "i'm done", "place the order", "finish",
		"ready to pay", "complete the order", "checkout",
	},
	LabelAffirm: {
		"yes", "yep", "yeah", "correct", "confirm", "sure", "do it", "go ahead",
	},
	LabelNegate: {
		"no", "nope", "not", "nevermind", "never mind", "stop", "hold on",
	},
}

// Classify scores the utterance against the keyword buckets and returns
// the best label with a pseudo-confidence. An utterance that hits no
// bucket yields no prediction rather than a fallback label, so the state
// machine's own keyword guards still get a say.
func Classify(utterance string) Prediction {
	normalized := strings.TrimSpace(strings.ToLower(utterance))
	if normalized == "" {
		return Prediction{IsEnabled: true}
	}

	bestLabel := ""
	bestScore := 0
	for _, label := range All {
		keywords, ok := keywordBuckets[label]
		if !ok {
			continue
		}
		score := 0
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				score += 3
			}
		}
		if score > bestScore {
			bestScore = score
			bestLabel = label
		}
	}

	if bestScore == 0 {
		return Prediction{IsEnabled: true}
	}

	confidence := 0.4 + 0.1*float64(bestScore/3)
	if confidence > 0.95 {
		confidence = 0.95
	}

	return Prediction{Label: bestLabel, Confidence: confidence, IsEnabled: true, Successful: true}
}
