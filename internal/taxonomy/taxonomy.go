// Package taxonomy provides the versioned technology-area lookup used to
// judge whether a research award and a production contract sit in the same
// technical domain. The taxonomy is immutable once loaded; detection runs
// share a single instance.
package taxonomy

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Relation describes how two technology-area labels relate.
type Relation int

const (
	// RelationUnknown means at least one label is absent from the taxonomy.
	RelationUnknown Relation = iota
	// RelationUnrelated means both labels are known but share no link.
	RelationUnrelated
	// RelationRelated means the areas are adjacent in the taxonomy.
	RelationRelated
	// RelationExact means both labels canonicalize to the same area.
	RelationExact
)

func (r Relation) String() string {
	switch r {
	case RelationExact:
		return "exact"
	case RelationRelated:
		return "related"
	case RelationUnrelated:
		return "unrelated"
	default:
		return "unknown"
	}
}

// Area is one technology area in the taxonomy file.
type Area struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases,omitempty"`
	Related []string `yaml:"related,omitempty"`
}

// Taxonomy is a versioned, immutable technology-area lookup.
type Taxonomy struct {
	version string
	areas   map[string]Area
	aliases map[string]string          // normalized label -> area id
	related map[string]map[string]bool // symmetric adjacency
}

// Version returns the taxonomy version string.
func (t *Taxonomy) Version() string { return t.version }

// Load reads a taxonomy from a YAML file.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read %s", path)
	}

	// The YAML has a top-level "taxonomy" key
	var wrapper struct {
		Taxonomy struct {
			Version string `yaml:"version"`
			Areas   []Area `yaml:"areas"`
		} `yaml:"taxonomy"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "taxonomy: parse")
	}

	t, err := build(wrapper.Taxonomy.Version, wrapper.Taxonomy.Areas)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: invalid file %s", path)
	}
	return t, nil
}

func build(version string, areas []Area) (*Taxonomy, error) {
	if version == "" {
		return nil, eris.New("taxonomy: version is required")
	}
	if len(areas) == 0 {
		return nil, eris.New("taxonomy: no areas defined")
	}

	t := &Taxonomy{
		version: version,
		areas:   make(map[string]Area, len(areas)),
		aliases: make(map[string]string),
		related: make(map[string]map[string]bool),
	}

	var errs []string
	for _, a := range areas {
		if a.ID == "" {
			errs = append(errs, "area with empty id")
			continue
		}
		if _, dup := t.areas[a.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate area id %q", a.ID))
			continue
		}
		t.areas[a.ID] = a
		t.addAlias(a.ID, a.ID)
		t.addAlias(a.Name, a.ID)
		for _, al := range a.Aliases {
			t.addAlias(al, a.ID)
		}
	}

	// Adjacency is declared one-way in the file but stored symmetric.
	for _, a := range areas {
		for _, rel := range a.Related {
			if _, ok := t.areas[rel]; !ok {
				errs = append(errs, fmt.Sprintf("area %q relates to unknown area %q", a.ID, rel))
				continue
			}
			t.link(a.ID, rel)
		}
	}

	if len(errs) > 0 {
		return nil, eris.Errorf("taxonomy: %s", strings.Join(errs, "; "))
	}
	return t, nil
}

func (t *Taxonomy) addAlias(label, id string) {
	key := normalizeLabel(label)
	if key == "" {
		return
	}
	t.aliases[key] = id
}

func (t *Taxonomy) link(a, b string) {
	if t.related[a] == nil {
		t.related[a] = make(map[string]bool)
	}
	if t.related[b] == nil {
		t.related[b] = make(map[string]bool)
	}
	t.related[a][b] = true
	t.related[b][a] = true
}

// Canonical resolves a free-form label to its area id.
func (t *Taxonomy) Canonical(label string) (string, bool) {
	id, ok := t.aliases[normalizeLabel(label)]
	return id, ok
}

// Relation classifies the relationship between two labels. It is symmetric:
// Relation(a, b) == Relation(b, a).
func (t *Taxonomy) Relation(a, b string) Relation {
	idA, okA := t.Canonical(a)
	idB, okB := t.Canonical(b)
	if !okA || !okB {
		return RelationUnknown
	}
	if idA == idB {
		return RelationExact
	}
	if t.related[idA][idB] {
		return RelationRelated
	}
	return RelationUnrelated
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// Default returns the built-in taxonomy used when no file is configured.
// Area ids follow common federal R&D topic groupings.
func Default() *Taxonomy {
	t, err := build("builtin-1", defaultAreas)
	if err != nil {
		// The built-in table is validated by tests; a failure here is a bug.
		panic(err)
	}
	return t
}

var defaultAreas = []Area{
	{
		ID:      "ai_ml",
		Name:    "Artificial Intelligence and Machine Learning",
		Aliases: []string{"ai", "ml", "ai/ml", "artificial intelligence", "machine learning"},
		Related: []string{"autonomy", "software", "data_analytics"},
	},
	{
		ID:      "autonomy",
		Name:    "Autonomous Systems",
		Aliases: []string{"autonomous systems", "unmanned systems", "uas", "uuv"},
		Related: []string{"robotics"},
	},
	{
		ID:      "robotics",
		Name:    "Robotics",
		Related: []string{"sensors"},
	},
	{
		ID:      "data_analytics",
		Name:    "Data Analytics",
		Aliases: []string{"analytics", "big data"},
		Related: []string{"software"},
	},
	{
		ID:      "software",
		Name:    "Software and Computing",
		Aliases: []string{"software engineering", "computing", "cloud"},
		Related: []string{"cyber"},
	},
	{
		ID:      "cyber",
		Name:    "Cybersecurity",
		Aliases: []string{"cybersecurity", "information assurance", "infosec"},
		Related: []string{"communications"},
	},
	{
		ID:      "communications",
		Name:    "Communications and Networking",
		Aliases: []string{"comms", "networking", "c4isr"},
		Related: []string{"electronics", "space"},
	},
	{
		ID:      "electronics",
		Name:    "Electronics and Microelectronics",
		Aliases: []string{"microelectronics", "semiconductors"},
		Related: []string{"sensors"},
	},
	{
		ID:      "sensors",
		Name:    "Sensors and Signal Processing",
		Aliases: []string{"sensing", "signal processing", "electro-optics"},
		Related: []string{},
	},
	{
		ID:      "space",
		Name:    "Space Technology",
		Aliases: []string{"space systems", "satellites"},
		Related: []string{"propulsion"},
	},
	{
		ID:      "propulsion",
		Name:    "Propulsion",
		Aliases: []string{"hypersonics", "rocket propulsion"},
		Related: []string{"energy"},
	},
	{
		ID:      "energy",
		Name:    "Energy and Power",
		Aliases: []string{"power systems", "batteries", "energy storage"},
		Related: []string{"materials"},
	},
	{
		ID:      "materials",
		Name:    "Advanced Materials",
		Aliases: []string{"materials science", "composites", "nanomaterials"},
		Related: []string{"manufacturing"},
	},
	{
		ID:      "manufacturing",
		Name:    "Advanced Manufacturing",
		Aliases: []string{"additive manufacturing", "3d printing"},
		Related: []string{},
	},
	{
		ID:      "biomedical",
		Name:    "Biomedical and Human Systems",
		Aliases: []string{"biotech", "biotechnology", "medical devices", "human systems"},
		Related: []string{},
	},
}
