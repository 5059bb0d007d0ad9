package oracle

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hpungsan/larder/internal/config"
)

// fakeCompleter returns a canned reply and records the prompts it saw.
type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func newTestOracle(reply string, err error) (*Oracle, *fakeCompleter) {
	fc := &fakeCompleter{reply: reply, err: err}
	return New(fc, config.DefaultConfig(), nil), fc
}

func TestQueryRawNutrition_Statuses(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Status
	}{
		{"plain json", `{"calories":89,"protein":1.1,"carbs":22.8,"fats":0.3,"sugar":12.2,"fiber":2.6}`, StatusOK},
		{"fenced json", "```json\n{\"calories\":52,\"protein\":0.3,\"carbs\":14,\"fats\":0.2,\"sugar\":10,\"fiber\":2.4}\n```", StatusOK},
		{"trailing commentary", `{"calories":52,"protein":0.3,"carbs":14,"fats":0.2,"sugar":10,"fiber":2.4} Values are approximate.`, StatusOK},
		{"leading commentary", `Here you go: {"calories":52,"protein":0.3,"carbs":14,"fats":0.2,"sugar":10,"fiber":2.4}`, StatusOK},
		{"null literal", "null", StatusNotRaw},
		{"null with spaces", "  NULL \n", StatusNotRaw},
		{"empty", "", StatusNotRaw},
		{"not json", "I don't know", StatusInvalid},
		{"missing field", `{"calories":52,"protein":0.3,"carbs":14,"fats":0.2,"sugar":10}`, StatusInvalid},
		{"negative field", `{"calories":52,"protein":-1,"carbs":14,"fats":0.2,"sugar":10,"fiber":2}`, StatusInvalid},
		{"numeric string", `{"calories":"52","protein":0.3,"carbs":14,"fats":0.2,"sugar":10,"fiber":2}`, StatusInvalid},
		{"sugar exceeds carbs", `{"calories":300,"protein":1,"carbs":50,"fats":1,"sugar":80,"fiber":1}`, StatusNotRaw},
		{"macro over 100", `{"calories":400,"protein":120,"carbs":0,"fats":0,"sugar":0,"fiber":0}`, StatusNotRaw},
		{"calories over 900", `{"calories":950,"protein":0,"carbs":0,"fats":100,"sugar":0,"fiber":0}`, StatusNotRaw},
		{"boundary values", `{"calories":900,"protein":0,"carbs":0,"fats":100,"sugar":0,"fiber":0}`, StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := newTestOracle(tt.reply, nil)
			got := o.QueryRawNutrition(context.Background(), "banana")
			if got.Status != tt.want {
				t.Errorf("Status = %q, want %q", got.Status, tt.want)
			}
		})
	}
}

func TestQueryRawNutrition_Data(t *testing.T) {
	o, fc := newTestOracle(`{"calories":89,"protein":1.1,"carbs":22.8,"fats":0.3,"sugar":12.2,"fiber":2.6}`, nil)

	got := o.QueryRawNutrition(context.Background(), "banana")
	if got.Status != StatusOK {
		t.Fatalf("Status = %q, want ok", got.Status)
	}
	if got.Data.Calories != 89 || got.Data.Carbs != 22.8 || got.Data.Fiber != 2.6 {
		t.Errorf("Data = %+v", got.Data)
	}
	if len(fc.prompts) != 1 || !strings.Contains(fc.prompts[0], `"banana"`) {
		t.Errorf("prompt did not mention the food: %v", fc.prompts)
	}
}

func TestQueryRawNutrition_CompleterError(t *testing.T) {
	o, _ := newTestOracle("", &UpstreamError{StatusCode: 503, Body: "unavailable"})

	got := o.QueryRawNutrition(context.Background(), "banana")
	if got.Status != StatusError {
		t.Errorf("Status = %q, want error", got.Status)
	}
	if got.Err == nil {
		t.Error("Err should carry the completer failure")
	}
}

func TestQueryRawNutrition_ConfiguredThresholds(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxCaloriesPer100g = 500
	o := New(&fakeCompleter{reply: `{"calories":600,"protein":0,"carbs":0,"fats":60,"sugar":0,"fiber":0}`}, cfg, nil)

	if got := o.QueryRawNutrition(context.Background(), "lard"); got.Status != StatusNotRaw {
		t.Errorf("Status = %q, want not_raw under a 500 kcal cap", got.Status)
	}
}

func TestQueryPieceWeight(t *testing.T) {
	tests := []struct {
		reply  string
		want   float64
		wantOK bool
	}{
		{"118", 118, true},
		{" 50.5 \n", 50.5, true},
		{"120 grams", 120, true},
		{"1000", 1000, true},
		{"null", 0, false},
		{"Null", 0, false},
		{"", 0, false},
		{"about 120", 0, false},
		{"0", 0, false},
		{"-5", 0, false},
		{"1500", 0, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.reply), func(t *testing.T) {
			o, _ := newTestOracle(tt.reply, nil)
			got, ok := o.QueryPieceWeight(context.Background(), "egg")
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("QueryPieceWeight = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestQueryPieceWeight_CompleterError(t *testing.T) {
	o, _ := newTestOracle("", fmt.Errorf("boom"))

	if _, ok := o.QueryPieceWeight(context.Background(), "egg"); ok {
		t.Error("completer error should yield not ok")
	}
}
