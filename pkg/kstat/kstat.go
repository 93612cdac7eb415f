package kstat

import (
	"bytes"
	"fmt"
	"sort"
)

// AnyInstance matches every instance in Filter.
const AnyInstance = -1

// Kstat identifies one statistics record.
type Kstat struct {
	Module   string
	Instance int
	Name     string
	Class    string
}

func (k Kstat) String() string {
	return fmt.Sprintf("%s:%d:%s", k.Module, k.Instance, k.Name)
}

// Kind is the type of a named value.
type Kind uint8

const (
	KindUint64 Kind = iota
	KindString
	KindChar
)

func (k Kind) String() string {
	switch k {
	case KindUint64:
		return "uint64"
	case KindString:
		return "string"
	case KindChar:
		return "char"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is one named field.
type Value struct {
	Kind   Kind
	Uint64 uint64
	Str    string
}

func U64(v uint64) Value { return Value{Kind: KindUint64, Uint64: v} }

func Str(s string) Value { return Value{Kind: KindString, Str: s} }

// Char builds a fixed-size character value, trimming trailing NULs.
func Char(b []byte) Value {
	return Value{Kind: KindChar, Str: string(bytes.TrimRight(b, "\x00"))}
}

// Data is the content of one kstat read.
type Data struct {
	Snaptime uint64 // ns, time the data was sampled
	Crtime   uint64 // ns, time the kstat was created
	Named    map[string]Value
}

// Uint64 returns a numeric field.
func (d *Data) Uint64(name string) (uint64, error) {
	v, ok := d.Named[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoField, name)
	}
	if v.Kind != KindUint64 {
		return 0, fmt.Errorf("%w: %s is %s", ErrFieldType, name, v.Kind)
	}
	return v.Uint64, nil
}

// String returns a string or char field.
func (d *Data) String(name string) (string, error) {
	v, ok := d.Named[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoField, name)
	}
	if v.Kind != KindString && v.Kind != KindChar {
		return "", fmt.Errorf("%w: %s is %s", ErrFieldType, name, v.Kind)
	}
	return v.Str, nil
}

// Has reports whether a field is present.
func (d *Data) Has(name string) bool {
	_, ok := d.Named[name]
	return ok
}

func (d *Data) clone() *Data {
	named := make(map[string]Value, len(d.Named))
	for k, v := range d.Named {
		named[k] = v
	}
	return &Data{Snaptime: d.Snaptime, Crtime: d.Crtime, Named: named}
}

// Handle is a view of the kernel's statistics.
//
// Update refreshes the set of instantiated kstats. Filter lists kstats
// matching module, instance and name; an empty string or AnyInstance matches
// everything. Results are ordered by module, instance, name. Read samples one
// kstat.
type Handle interface {
	Update() error
	Filter(module string, instance int, name string) []*Kstat
	Read(ks *Kstat) (*Data, error)
}

func matches(k *Kstat, module string, instance int, name string) bool {
	return (module == "" || k.Module == module) &&
		(instance == AnyInstance || k.Instance == instance) &&
		(name == "" || k.Name == name)
}

func sortKstats(ks []*Kstat) {
	sort.Slice(ks, func(i, j int) bool {
		a, b := ks[i], ks[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Instance != b.Instance {
			return a.Instance < b.Instance
		}
		return a.Name < b.Name
	})
}
