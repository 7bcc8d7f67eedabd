// Archetypes are the playable student characters. Each fixes intelligence and
// seeds the starting mood, energy and social values; knowledge always starts
// at zero.
package agents

import (
	"fmt"
	"sort"
)

// Archetype names.
const (
	ArchBubu   = "bubu"
	ArchYier   = "yier"
	ArchMitao  = "mitao"
	ArchHuihui = "huihui"
)

// Template holds an archetype's starting attributes.
type Template struct {
	Name         string
	DisplayName  string
	Intelligence int
	Mood         int
	Energy       int
	Social       int
}

var archetypeTemplates = map[string]Template{
	ArchBubu: {
		Name: ArchBubu, DisplayName: "Bubu",
		Intelligence: 65, Mood: 80, Energy: 60, Social: 70, // cheerful, high mood
	},
	ArchYier: {
		Name: ArchYier, DisplayName: "Yier",
		Intelligence: 85, Mood: 60, Energy: 70, Social: 55, // the top student
	},
	ArchMitao: {
		Name: ArchMitao, DisplayName: "Mitao",
		Intelligence: 70, Mood: 75, Energy: 65, Social: 80, // everyone's friend
	},
	ArchHuihui: {
		Name: ArchHuihui, DisplayName: "Huihui",
		Intelligence: 75, Mood: 70, Energy: 75, Social: 65, // steady all-rounder
	},
}

// Lookup returns the template for name.
func Lookup(name string) (Template, error) {
	t, ok := archetypeTemplates[name]
	if !ok {
		return Template{}, fmt.Errorf("unknown archetype %q", name)
	}
	return t, nil
}

// Names returns every archetype name, sorted.
func Names() []string {
	names := make([]string, 0, len(archetypeTemplates))
	for n := range archetypeTemplates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewAgent creates a week-0 agent from a template.
func (t Template) NewAgent() *Agent {
	return &Agent{
		Name:         t.DisplayName,
		Archetype:    t.Name,
		Intelligence: t.Intelligence,
		Mood:         t.Mood,
		Energy:       t.Energy,
		Social:       t.Social,
	}
}
