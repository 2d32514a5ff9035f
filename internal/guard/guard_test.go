package guard

import "testing"

func TestGateCheck(t *testing.T) {
	t.Parallel()

	gate := New(Config{})
	cases := []struct {
		name        string
		message     string
		want        Outcome
		educational bool
	}{
		{name: "dosage request", message: "¿Qué dosis le doy a mi perro?", want: OutcomeMedicalLimit},
		{name: "diagnosis request", message: "Mi gato está raro, ¿qué le pasa?", want: OutcomeMedicalLimit},
		{name: "educational override", message: "¿Qué composición debe tener un pienso para diabetes?", want: OutcomeNone, educational: true},
		{name: "educational does not hide rx", message: "Información general sobre antibióticos", want: OutcomeRxLimit, educational: true},
		{name: "rx inquiry", message: "¿Vendéis antibiótico para perros?", want: OutcomeRxLimit},
		{name: "medical beats rx", message: "Necesito receta, ¿qué dosis uso?", want: OutcomeMedicalLimit},
		{name: "plain product question", message: "¿Tienes condroprotector?", want: OutcomeNone},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := gate.Check(tc.message)
			if got.Outcome != tc.want {
				t.Fatalf("expected %q, got %q (matched %q)", tc.want, got.Outcome, got.Matched)
			}
			if got.EducationalOverride != tc.educational {
				t.Fatalf("expected educational=%v, got %v", tc.educational, got.EducationalOverride)
			}
		})
	}
}

func TestGateUsesConfiguredKeywordSets(t *testing.T) {
	t.Parallel()

	gate := New(Config{
		MedicalRequestPatterns: []string{"pauta"},
		RxPatterns:             []string{"apoquel"},
		EducationalMarkers:     []string{},
	})
	if got := gate.Check("¿Qué pauta sigo?").Outcome; got != OutcomeMedicalLimit {
		t.Fatalf("expected configured medical keyword to match, got %q", got)
	}
	if got := gate.Check("¿Qué dosis le doy?").Outcome; got != OutcomeNone {
		t.Fatalf("expected default keywords replaced, got %q", got)
	}
	if got := gate.Check("composición de Apoquel").Outcome; got != OutcomeRxLimit {
		t.Fatalf("expected rx match, got %q", got)
	}
}
