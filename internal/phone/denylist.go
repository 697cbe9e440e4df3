package phone

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Denylist holds phone numbers known to be junk: placeholder values, test
// numbers, and historically invalid imports. Entries are compared digit-only,
// so formatting differences never defeat the list. A nil Denylist matches
// nothing.
type Denylist struct {
	entries map[string]struct{}
}

type denylistFile struct {
	Numbers []string `yaml:"numbers"`
}

// NewDenylist builds a Denylist from raw number strings.
func NewDenylist(numbers []string) *Denylist {
	d := &Denylist{entries: make(map[string]struct{}, len(numbers))}
	for _, n := range numbers {
		if digits := Digits(n); digits != "" {
			d.entries[digits] = struct{}{}
		}
	}
	return d
}

// LoadDenylist reads a YAML denylist seed file:
//
//	numbers:
//	  - "+5511999999999"
//	  - "0000000000"
func LoadDenylist(path string) (*Denylist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "phone: read denylist %s", path)
	}
	var f denylistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "phone: parse denylist %s", path)
	}
	return NewDenylist(f.Numbers), nil
}

// Contains reports whether raw matches a denylisted number, digit-only.
func (d *Denylist) Contains(raw string) bool {
	if d == nil {
		return false
	}
	_, ok := d.entries[Digits(raw)]
	return ok
}

// Len returns the number of denylisted entries.
func (d *Denylist) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}
