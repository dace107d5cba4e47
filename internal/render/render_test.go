package render

import (
	"strings"
	"testing"
	"time"

	"novapress/internal/api"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func sample() *api.Synthesis {
	created := api.Timestamp(now.Add(-2 * time.Hour))
	score := 0.82
	return &api.Synthesis{
		ID:                "syn-1",
		Title:             "Accord européen sur l'énergie",
		Summary:           "Les Vingt-Sept s'entendent sur un plafond.",
		Body:              "Après deux jours de négociations...",
		Category:          "ECONOMIE",
		NarrativePhase:    "peak",
		KeyPoints:         []string{"Plafond à 180 €/MWh", "Entrée en vigueur en mars"},
		TransparencyScore: &score,
		IsBreaking:        true,
		CreatedAt:         &created,
		SourceArticles: []api.SourceArticle{
			{Title: "Le sommet", URL: "https://example.fr/a", Source: "Le Monde"},
			{Title: "Dépêche", Source: "AFP"},
		},
	}
}

func TestSynthesisMarkdown(t *testing.T) {
	md := SynthesisMarkdown(sample(), now)
	for _, want := range []string{
		"**DERNIÈRE MINUTE**",
		"# Accord européen sur l'énergie",
		"*Économie · Phase : Apogée · 2 sources · il y a 2 heures*",
		"> Les Vingt-Sept s'entendent sur un plafond.",
		"## Points clés",
		"- Plafond à 180 €/MWh",
		"- Score de transparence : 0.82",
		"- Conformité : —",
		"- [Le sommet](https://example.fr/a) (Le Monde)",
		"- Dépêche (AFP)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected %q in markdown:\n%s", want, md)
		}
	}
}

func TestSynthesisMarkdown_Minimal(t *testing.T) {
	md := SynthesisMarkdown(&api.Synthesis{ID: "x", Title: "Titre seul"}, now)
	if md != "# Titre seul\n" {
		t.Errorf("markdown = %q", md)
	}
}

func TestRenderer_Synthesis(t *testing.T) {
	r, err := NewRenderer(60, "notty")
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Synthesis(sample(), now)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Accord", "Points clés", "AFP"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in rendered output:\n%s", want, out)
		}
	}
}
