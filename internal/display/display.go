// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, the TUI and MCP text results.
// Keep raw codes for JSON fields, map keys, and equality comparisons.
package display

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"novapress/internal/api"
)

// --- Pipeline Modes ---

var modes = map[string]string{
	"SCRAPE":     "Collecte des sources",
	"TOPIC":      "Veille thématique",
	"SIMULATION": "Simulation",
}

// Mode returns the human-readable name for a pipeline mode.
// Unknown codes are returned as-is.
func Mode(code string) string {
	if name, ok := modes[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}

// ModeWithCode returns "Simulation (SIMULATION)" format.
func ModeWithCode(code string) string {
	up := strings.ToUpper(code)
	if name, ok := modes[up]; ok {
		return name + " (" + up + ")"
	}
	return code
}

// --- Pipeline Steps ---

var steps = map[string]string{
	"idle":         "En attente",
	"starting":     "Démarrage",
	"scraping":     "Collecte",
	"embedding":    "Vectorisation",
	"clustering":   "Regroupement",
	"synthesis":    "Synthèse",
	"synthesizing": "Synthèse",
	"causal":       "Analyse causale",
	"storing":      "Enregistrement",
	"completed":    "Terminé",
	"cancelled":    "Annulé",
	"error":        "Erreur",
}

// Step returns the human-readable name for a pipeline step.
// "clustering" -> "Regroupement".
func Step(code string) string {
	if name, ok := steps[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

// StepPath converts a slice of step codes to a human-readable path.
// ["scraping", "clustering"] -> "Collecte → Regroupement"
func StepPath(codes []string) string {
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = Step(c)
	}
	return strings.Join(names, " → ")
}

// --- Source Statuses ---

type sourceStatus struct {
	glyph, name string
}

var sourceStatuses = map[string]sourceStatus{
	"pending":  {"○", "En attente"},
	"scraping": {"◐", "En cours"},
	"success":  {"●", "Réussie"},
	"error":    {"✗", "Erreur"},
	"timeout":  {"⏱", "Délai dépassé"},
	"skipped":  {"↷", "Ignorée"},
	"empty":    {"∅", "Vide"},
}

// SourceStatus returns the name of a source scraping status.
func SourceStatus(code string) string {
	if s, ok := sourceStatuses[code]; ok {
		return s.name
	}
	return code
}

// SourceGlyph returns the one-character indicator of a source status,
// "?" for unknown codes.
func SourceGlyph(code string) string {
	if s, ok := sourceStatuses[code]; ok {
		return s.glyph
	}
	return "?"
}

// SourceStatusWithGlyph returns "✗ Erreur" format.
func SourceStatusWithGlyph(code string) string {
	return SourceGlyph(code) + " " + SourceStatus(code)
}

// --- Narrative Phases ---

var phases = map[string]string{
	"emerging":   "Émergence",
	"developing": "Développement",
	"peak":       "Apogée",
	"declining":  "Déclin",
	"resolved":   "Résolution",
}

// Phase returns the name of a narrative phase.
func Phase(code string) string {
	if name, ok := phases[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

// --- Categories ---

var categories = map[string]string{
	"MONDE":     "Monde",
	"FRANCE":    "France",
	"EUROPE":    "Europe",
	"ECONOMIE":  "Économie",
	"POLITIQUE": "Politique",
	"TECH":      "Tech",
	"SCIENCES":  "Sciences",
	"CULTURE":   "Culture",
	"SPORT":     "Sport",
}

// Category returns the display name of a synthesis category.
func Category(code string) string {
	if name, ok := categories[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}

// --- Messages ---

// Operator and reader messages.
const (
	MsgInvalidKey  = "Clé admin invalide"
	MsgMissingKey  = "Clé admin manquante"
	MsgUnreachable = "Impossible de joindre le serveur"
	MsgInvalidMode = "Mode de pipeline invalide"
	MsgNotFound    = "Contenu introuvable"
	MsgNotLoggedIn = "Vous n'êtes pas connecté"
	MsgDemoData    = "Données de démonstration (serveur injoignable)"
	MsgStarted     = "Pipeline démarré"
	MsgStopping    = "Arrêt du pipeline demandé"
	MsgLockReset   = "Verrou du pipeline réinitialisé"
)

// UserMessage returns the text to show for err. Backend messages are
// passed through; transport failures become MsgUnreachable.
func UserMessage(err error) string {
	var apiErr *api.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, api.ErrMissingAdminKey):
		return MsgMissingKey
	case errors.Is(err, api.ErrInvalidMode):
		return MsgInvalidMode
	case api.IsUnauthorized(err) || api.IsForbidden(err):
		return MsgInvalidKey
	case api.IsNotFound(err):
		return MsgNotFound
	case errors.As(err, &apiErr):
		return apiErr.Message()
	default:
		return MsgUnreachable
	}
}

// --- Times and Counts ---

var frenchMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Second, Format: "à l'instant", DivBy: time.Second},
	{D: time.Minute, Format: "%s %d secondes", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "%s une minute", DivBy: 1},
	{D: time.Hour, Format: "%s %d minutes", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "%s une heure", DivBy: 1},
	{D: humanize.Day, Format: "%s %d heures", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "%s un jour", DivBy: 1},
	{D: humanize.Week, Format: "%s %d jours", DivBy: humanize.Day},
	{D: 2 * humanize.Week, Format: "%s une semaine", DivBy: 1},
	{D: humanize.Month, Format: "%s %d semaines", DivBy: humanize.Week},
	{D: 2 * humanize.Month, Format: "%s un mois", DivBy: 1},
	{D: humanize.Year, Format: "%s %d mois", DivBy: humanize.Month},
	{D: 2 * humanize.Year, Format: "%s un an", DivBy: 1},
	{D: math.MaxInt64, Format: "%s %d ans", DivBy: humanize.Year},
}

// RelTime describes t relative to now in French: "il y a 3 minutes",
// "dans une heure". The zero time yields "—".
func RelTime(t, now time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return humanize.CustomRelTime(t, now, "il y a", "dans", frenchMagnitudes)
}

// Since is RelTime against time.Now.
func Since(t time.Time) string { return RelTime(t, time.Now()) }

// Count formats an integer with French digit grouping: 12 345.
func Count(n int) string {
	return humanize.FormatInteger("# ###,", n)
}
