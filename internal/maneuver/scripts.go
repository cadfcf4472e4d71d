package maneuver

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Names of the built-in scripts.
const (
	FaceInward = "face_inward"
	HardTurn   = "hard_turn"
)

// CourseComplete is the mark the hard turn reports once the vehicle is back
// on the outer loop.
const CourseComplete = "course_complete"

// Builtin returns the scripts the vehicle ships with.
func Builtin() map[string]Script {
	return map[string]Script{
		FaceInward: {
			Straight(200 * time.Millisecond),
			Align(),
			Straight(350 * time.Millisecond),
			Left(),
			Back(400*time.Millisecond, 0),
			Align(),
		},
		HardTurn: {
			Left(),
			Straight(180 * time.Millisecond),
			Right(),
			Stop(),
			Back(800*time.Millisecond, 0),
			Twist(0.45, 200*time.Millisecond),
			Straight(2100 * time.Millisecond),
			Right(),
			Twist(-0.5, 200*time.Millisecond),
			Straight(1500 * time.Millisecond),
			Align(),
			Right(),
			Twist(-0.5, 300*time.Millisecond),
			Straight(300 * time.Millisecond),
			Left(),
			Mark(CourseComplete),
			Back(200*time.Millisecond, 0),
			Left(),
			Back(1200*time.Millisecond, 0),
		},
	}
}

// DecodeScripts reads a YAML mapping of script name to steps and validates
// every script.
func DecodeScripts(r io.Reader) (map[string]Script, error) {
	var scripts map[string]Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&scripts); err != nil {
		if err == io.EOF {
			return map[string]Script{}, nil
		}
		return nil, fmt.Errorf("decode scripts: %w", err)
	}
	for _, name := range SortedNames(scripts) {
		if err := scripts[name].Validate(); err != nil {
			return nil, fmt.Errorf("script %s: %w", name, err)
		}
	}
	return scripts, nil
}

// LoadScripts reads a script file and returns the built-in scripts with the
// file's scripts layered on top.
func LoadScripts(path string) (map[string]Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scripts: %w", err)
	}
	defer f.Close()
	loaded, err := DecodeScripts(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lo.Assign(Builtin(), loaded), nil
}

// EncodeScripts writes scripts as YAML in name order.
func EncodeScripts(w io.Writer, scripts map[string]Script) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range SortedNames(scripts) {
		var v yaml.Node
		if err := v.Encode(scripts[name]); err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name}, &v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return err
	}
	return enc.Close()
}

// SortedNames returns the script names in lexical order.
func SortedNames(scripts map[string]Script) []string {
	names := lo.Keys(scripts)
	sort.Strings(names)
	return names
}
