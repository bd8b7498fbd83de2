// Package catalog loads the household's devices and scenes.
//
// A catalog file is optional. Without one the built-in catalogue of eleven
// devices and five scenes is used. A file that lists devices but no scenes
// gets the built-in scenes trimmed to the devices it declares.
//
// Example file:
//
//	devices:
//	  - name: office_light
//	    pin: 7
//	    type: light
//	    room: office
//	    power_watts: 40
//	    aliases: [desk lamp]
//	scenes:
//	  - name: work_mode
//	    description: Focus on the office
//	    target_states:
//	      office_light: true
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/hearth/internal/device"
	"github.com/nerrad567/hearth/internal/scene"
)

// Catalog is the on-disk device and scene list.
type Catalog struct {
	Devices []device.Device `yaml:"devices"`
	Scenes  []scene.Scene   `yaml:"scenes"`
}

// Default returns the built-in catalogue.
func Default() *Catalog {
	devices := device.DefaultDevices()
	return &Catalog{Devices: devices, Scenes: scene.DefaultScenes(devices)}
}

// Load reads a catalog file. An empty path returns Default().
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	if c.Scenes == nil {
		c.Scenes = scene.DefaultScenes(c.Devices)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validating catalog: %w", err)
	}
	return c, nil
}

// Validate checks the file-level rules. Alias collisions and scene targets
// are checked again by the registries on Populate.
func (c *Catalog) Validate() error {
	var errs []string
	errs = append(errs, c.validateDevices()...)
	errs = append(errs, c.validateScenes()...)

	if len(errs) > 0 {
		return fmt.Errorf("catalog errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Catalog) validateDevices() []string {
	var errs []string
	if len(c.Devices) == 0 {
		errs = append(errs, "devices must have at least one entry")
	}

	names := make(map[string]bool)
	pins := make(map[int]string)
	for i, d := range c.Devices {
		if d.Name == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].name is required", i))
			continue
		}
		if names[d.Name] {
			errs = append(errs, fmt.Sprintf("devices[%d].name %q is duplicate", i, d.Name))
		}
		names[d.Name] = true

		if !d.Type.Valid() {
			errs = append(errs, fmt.Sprintf("devices[%d].type %q is not a known device type", i, d.Type))
		}
		if d.Pin < 1 {
			errs = append(errs, fmt.Sprintf("devices[%d].pin must be positive", i))
		} else if other, taken := pins[d.Pin]; taken {
			errs = append(errs, fmt.Sprintf("devices[%d].pin %d is already used by %s", i, d.Pin, other))
		} else {
			pins[d.Pin] = d.Name
		}
		if d.PowerWatts < 0 {
			errs = append(errs, fmt.Sprintf("devices[%d].power_watts must not be negative", i))
		}
	}
	return errs
}

func (c *Catalog) validateScenes() []string {
	var errs []string
	names := make(map[string]bool)
	for i, s := range c.Scenes {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("scenes[%d].name is required", i))
			continue
		}
		if names[s.Name] {
			errs = append(errs, fmt.Sprintf("scenes[%d].name %q is duplicate", i, s.Name))
		}
		names[s.Name] = true
		if len(s.Targets) == 0 {
			errs = append(errs, fmt.Sprintf("scenes[%d].target_states must have at least one entry", i))
		}
	}
	return errs
}

// Populate registers every device, then every scene.
func (c *Catalog) Populate(devices *device.Registry, scenes *scene.Registry) error {
	for _, d := range c.Devices {
		if err := devices.Register(d); err != nil {
			return fmt.Errorf("registering device %s: %w", d.Name, err)
		}
	}
	for _, s := range c.Scenes {
		if err := scenes.Register(s); err != nil {
			return fmt.Errorf("registering scene %s: %w", s.Name, err)
		}
	}
	return nil
}
