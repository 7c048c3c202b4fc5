// Package knowledge holds the school resource catalog the assistant answers
// from: tools, equipment, and facilities, loaded from a JSON file and
// searchable by plain lexical overlap.
package knowledge

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
)

// Tool is one school resource: a machine, lab, room, or service students can
// ask about.
type Tool struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	Location         string   `json:"location"`
	Description      string   `json:"description"`
	Availability     string   `json:"availability"`
	TrainingRequired bool     `json:"training_required"`
	Contact          string   `json:"contact"`
	Keywords         []string `json:"keywords"`
}

// Result is a Tool with its search relevance attached.
type Result struct {
	Tool
	RelevanceScore float64 `json:"relevance_score"`
}

type catalogFileBody struct {
	Tools []Tool `json:"tools"`
}

// Catalog holds the live resource list and hands out consistent snapshots,
// same shape as the moderation wordset provider: load from a JSON file at
// startup, fall back to the built-in defaults on problems, swap atomically
// on update.
type Catalog struct {
	logger *slog.Logger
	path   string

	writeLk sync.Mutex
	current atomic.Pointer[[]Tool]
}

// NewCatalog loads the catalog from path, or installs the default resources
// when the path is empty or the file does not exist yet (persisting the
// defaults in the latter case). A malformed file is logged and skipped.
func NewCatalog(path string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		logger: logger.With("subsystem", "knowledge"),
		path:   path,
	}
	defaults := DefaultTools()
	c.current.Store(&defaults)

	if path == "" {
		return c
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := c.persist(defaults); err != nil {
			c.logger.Error("failed to write default knowledge base file", "path", path, "err", err)
		}
		return c
	}
	if err := c.loadFile(); err != nil {
		c.logger.Error("failed to load knowledge base file, keeping defaults", "path", path, "err", err)
	}
	return c
}

// Tools returns the live resource list. Callers must not mutate it.
func (c *Catalog) Tools() []Tool {
	return *c.current.Load()
}

// Categories returns the distinct categories across the catalog, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, tool := range c.Tools() {
		if tool.Category == "" || seen[tool.Category] {
			continue
		}
		seen[tool.Category] = true
		out = append(out, tool.Category)
	}
	sort.Strings(out)
	return out
}

// Replace installs a new resource list and persists it.
func (c *Catalog) Replace(tools []Tool) error {
	c.writeLk.Lock()
	defer c.writeLk.Unlock()
	if err := c.persist(tools); err != nil {
		return err
	}
	c.current.Store(&tools)
	return nil
}

func (c *Catalog) loadFile() error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}
	var body catalogFileBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return err
	}
	c.current.Store(&body.Tools)
	return nil
}

func (c *Catalog) persist(tools []Tool) error {
	if c.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(catalogFileBody{Tools: tools}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, raw, 0664)
}

// DefaultTools is the starter catalog written on first boot.
func DefaultTools() []Tool {
	return []Tool{
		{
			ID:               1,
			Name:             "3D Printers (Bambu Lab X1C)",
			Category:         "Fabrication",
			Location:         "Maker Space - Room 101",
			Description:      "Three Bambu Lab X1C 3D printers for high-quality prototyping and creating plastic parts with automatic multi-material capabilities",
			Availability:     "Available during lab hours (9 AM - 5 PM)",
			TrainingRequired: true,
			Contact:          "Dr. Smith - ext. 1234",
			Keywords:         []string{"3d printing", "prototyping", "plastic", "maker", "fabrication", "bambu lab", "x1c", "multi-material", "ams"},
		},
		{
			ID:               2,
			Name:             "Laser Cutter",
			Category:         "Fabrication",
			Location:         "Maker Space - Room 102",
			Description:      "CO2 laser cutter for cutting and engraving wood, acrylic, and fabric",
			Availability:     "Available with supervision Mon-Fri 10 AM - 4 PM",
			TrainingRequired: true,
			Contact:          "Prof. Johnson - ext. 5678",
			Keywords:         []string{"laser cutting", "engraving", "wood", "acrylic", "cutting"},
		},
		{
			ID:               3,
			Name:             "Computer Lab",
			Category:         "Computing",
			Location:         "Building A - Room 205",
			Description:      "30 computers with design software including AutoCAD, SolidWorks, and Adobe Creative Suite",
			Availability:     "24/7 with student ID card access",
			TrainingRequired: false,
			Contact:          "IT Help Desk - ext. 9999",
			Keywords:         []string{"computer", "software", "autocad", "solidworks", "adobe", "design"},
		},
		{
			ID:               4,
			Name:             "Electronics Lab",
			Category:         "Electronics",
			Location:         "Engineering Building - Room 150",
			Description:      "Oscilloscopes, function generators, multimeters, and breadboarding supplies",
			Availability:     "Open lab hours: Mon-Thu 1 PM - 8 PM, Fri 1 PM - 5 PM",
			TrainingRequired: true,
			Contact:          "Lab Manager - ext. 4321",
			Keywords:         []string{"electronics", "oscilloscope", "multimeter", "breadboard", "circuits"},
		},
		{
			ID:               5,
			Name:             "Library Study Rooms",
			Category:         "Study Space",
			Location:         "Main Library - 2nd Floor",
			Description:      "Quiet study rooms for individual and group work, equipped with whiteboards",
			Availability:     "Reservable online, 2-hour time slots",
			TrainingRequired: false,
			Contact:          "Library Front Desk - ext. 1111",
			Keywords:         []string{"study", "library", "quiet", "group work", "whiteboard", "reservation"},
		},
		{
			ID:               6,
			Name:             "Microscopy Lab",
			Category:         "Research",
			Location:         "Science Building - Room 301",
			Description:      "Light and electron microscopes for material analysis and biological samples",
			Availability:     "By appointment only",
			TrainingRequired: true,
			Contact:          "Dr. Williams - ext. 7890",
			Keywords:         []string{"microscope", "microscopy", "electron", "analysis", "samples"},
		},
	}
}
