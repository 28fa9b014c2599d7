package intent

import "testing"

func TestClassifyKnownBuckets(t *testing.T) {
	cases := []struct {
		utterance string
		want      string
	}{
		{"hi there", LabelGreeting},
		{"I want to order a pizza", LabelStartOrder},
		{"can i have a margherita", LabelAddItem},
		{"change the size to large", LabelModifyOrder},
		{"cancel my order", LabelCancelOrder},
		{"what's the status of my order", LabelCheckStatus},
		{"that's all, thanks", LabelCompleteOrder},
		{"yes go ahead", LabelAffirm},
		{"no, hold on", LabelNegate},
	}
	for _, tc := range cases {
		pred := Classify(tc.utterance)
		if !pred.HasPrediction() {
			t.Errorf("Classify(%q) produced no prediction", tc.utterance)
			continue
		}
		if pred.Label != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.utterance, pred.Label, tc.want)
		}
	}
}

func TestClassifyNoHitYieldsNoLabel(t *testing.T) {
	pred := Classify("the weather is nice today")
	if pred.HasPrediction() {
		t.Fatalf("expected no prediction, got %s", pred.Label)
	}
	if !pred.IsEnabled {
		t.Fatal("heuristic classifier should always report enabled")
	}
}

func TestClassifyConfidenceCapped(t *testing.T) {
	pred := Classify("yes yep correct confirm sure do it go ahead")
	if !pred.HasPrediction() {
		t.Fatal("expected a prediction")
	}
	if pred.Confidence > 0.95 {
		t.Fatalf("confidence should cap at 0.95, got %f", pred.Confidence)
	}
}

func TestKnownLabels(t *testing.T) {
	if !Known("ORDER.CANCEL") {
		t.Error("Known should be case-insensitive")
	}
	if Known("order.refund") {
		t.Error("unknown label accepted")
	}
}
