package core

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_topology.yaml
var defaultTopologyYAML []byte

// BlockRange assigns the same entry letters to every block numbered From..To.
type BlockRange struct {
	From    int      `yaml:"from"`
	To      int      `yaml:"to"`
	Entries []string `yaml:"entries"`
}

// Topology is the fixed pattern bootstrap expands into blocks, entries and units.
type Topology struct {
	Blocks []BlockRange `yaml:"blocks"`
	// Apartments maps an entry letter to the apartment numbers behind it.
	Apartments map[string][]string `yaml:"apartments"`
}

// DefaultTopology returns the embedded topology.
func DefaultTopology() (Topology, error) {
	return ParseTopology(defaultTopologyYAML)
}

// LoadTopology reads a topology file; an empty path selects the embedded default.
func LoadTopology(path string) (Topology, error) {
	if path == "" {
		return DefaultTopology()
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied topology path
	if err != nil {
		return Topology{}, fmt.Errorf("read topology: %w", err)
	}
	return ParseTopology(data)
}

// ParseTopology decodes and validates a YAML topology.
func ParseTopology(data []byte) (Topology, error) {
	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return Topology{}, fmt.Errorf("parse topology: %w", err)
	}
	topo.normalize()
	if err := topo.Validate(); err != nil {
		return Topology{}, err
	}
	return topo, nil
}

func (t *Topology) normalize() {
	for i := range t.Blocks {
		for j, letter := range t.Blocks[i].Entries {
			t.Blocks[i].Entries[j] = strings.ToUpper(strings.TrimSpace(letter))
		}
	}
	if len(t.Apartments) == 0 {
		return
	}
	apartments := make(map[string][]string, len(t.Apartments))
	for letter, numbers := range t.Apartments {
		key := strings.ToUpper(strings.TrimSpace(letter))
		for _, n := range numbers {
			apartments[key] = append(apartments[key], strings.TrimSpace(n))
		}
	}
	t.Apartments = apartments
}

// Validate reports the first structural problem in the topology.
func (t Topology) Validate() error {
	if len(t.Blocks) == 0 {
		return errors.New("topology: at least one block range is required")
	}
	ranges := append([]BlockRange(nil), t.Blocks...)
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].From < ranges[j].From })
	for i, r := range ranges {
		if r.From < 1 || r.To < r.From {
			return fmt.Errorf("topology: invalid block range %d-%d", r.From, r.To)
		}
		if i > 0 && r.From <= ranges[i-1].To {
			return fmt.Errorf("topology: block range %d-%d overlaps %d-%d", r.From, r.To, ranges[i-1].From, ranges[i-1].To)
		}
		if len(r.Entries) == 0 {
			return fmt.Errorf("topology: block range %d-%d has no entries", r.From, r.To)
		}
		seen := make(map[string]bool, len(r.Entries))
		for _, letter := range r.Entries {
			if letter == "" {
				return fmt.Errorf("topology: block range %d-%d has an empty entry letter", r.From, r.To)
			}
			if seen[letter] {
				return fmt.Errorf("topology: block range %d-%d repeats entry %s", r.From, r.To, letter)
			}
			seen[letter] = true
			if len(t.Apartments[letter]) == 0 {
				return fmt.Errorf("topology: entry %s has no apartments", letter)
			}
		}
	}
	for letter, numbers := range t.Apartments {
		seen := make(map[string]bool, len(numbers))
		for _, n := range numbers {
			if n == "" {
				return fmt.Errorf("topology: entry %s has an empty apartment number", letter)
			}
			if seen[n] {
				return fmt.Errorf("topology: entry %s repeats apartment %s", letter, n)
			}
			seen[n] = true
		}
	}
	return nil
}

// PlannedBlock is one block of an expanded topology.
type PlannedBlock struct {
	Name    string
	Entries []PlannedEntry
}

// PlannedEntry is one entry of an expanded topology.
type PlannedEntry struct {
	Letter     string
	Apartments []string
}

// Expand lists every block the topology describes, in block-number order.
func (t Topology) Expand() []PlannedBlock {
	ranges := append([]BlockRange(nil), t.Blocks...)
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].From < ranges[j].From })
	var out []PlannedBlock
	for _, r := range ranges {
		for n := r.From; n <= r.To; n++ {
			block := PlannedBlock{Name: strconv.Itoa(n)}
			for _, letter := range r.Entries {
				block.Entries = append(block.Entries, PlannedEntry{
					Letter:     letter,
					Apartments: append([]string(nil), t.Apartments[letter]...),
				})
			}
			out = append(out, block)
		}
	}
	return out
}
