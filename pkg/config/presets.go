package config

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v2"
)

// presetYAML is the embedded library of named ZPAQ model-component presets,
// a convenience the original zpaqlpy documentation strings sketch as canned
// snippets but never exposes as a compiler flag.
const presetYAML = `
fast:
  hh: 16
  hm: 0
  ph: 0
  pm: 0
  components:
    - "cm 16 24"
max:
  hh: 20
  hm: 0
  ph: 0
  pm: 0
  components:
    - "icm 16"
    - "isse 19 0"
    - "match 22 24"
    - "mix 16 0 3 24 255"
text:
  hh: 19
  hm: 0
  ph: 0
  pm: 0
  components:
    - "icm 19"
    - "isse 20 0"
`

// Preset is one named, ready-made model.
type Preset struct {
	HH, HM, PH, PM byte
	Components     []string
}

type presetFile struct {
	HH         byte     `yaml:"hh"`
	HM         byte     `yaml:"hm"`
	PH         byte     `yaml:"ph"`
	PM         byte     `yaml:"pm"`
	Components []string `yaml:"components"`
}

// Presets returns the embedded preset table, parsed once per call (the
// table is tiny; no caching is worth the complexity).
func Presets() (map[string]Preset, error) {
	var raw map[string]presetFile
	if err := yaml.Unmarshal([]byte(presetYAML), &raw); err != nil {
		return nil, fmt.Errorf("internal preset table is malformed: %w", err)
	}
	out := make(map[string]Preset, len(raw))
	for name, f := range raw {
		out[name] = Preset{HH: f.HH, HM: f.HM, PH: f.PH, PM: f.PM, Components: f.Components}
	}
	return out, nil
}

// PresetNames returns the sorted list of preset names, for --list-presets.
func PresetNames() ([]string, error) {
	presets, err := Presets()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// ApplyPreset overwrites a Record's model header fields with a named
// preset's, leaving pcomp_invocation and any pcomp-derived fields alone.
func ApplyPreset(rec *Record, name string) error {
	presets, err := Presets()
	if err != nil {
		return err
	}
	p, ok := presets[name]
	if !ok {
		return &Error{Msg: fmt.Sprintf("unknown preset %q", name)}
	}
	rec.HH, rec.HM, rec.PH, rec.PM = p.HH, p.HM, p.PH, p.PM
	rec.Model = rec.Model[:0]
	for i, c := range p.Components {
		rec.Model = append(rec.Model, ModelComponent{Index: i, Definition: c})
	}
	rec.N = byte(len(rec.Model))
	return nil
}
