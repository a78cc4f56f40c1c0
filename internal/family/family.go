package family

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Unit is one sub-unit of a task, worth a fixed number of stars.
type Unit struct {
	Label string `yaml:"label" json:"label"`
	Stars int    `yaml:"stars" json:"stars"`
}

// Task is one configured chore. A task either carries a flat star value or
// a list of units, each with its own value.
type Task struct {
	Title string `yaml:"title" json:"title"`
	Img   string `yaml:"img,omitempty" json:"img,omitempty"`
	Stars int    `yaml:"stars,omitempty" json:"stars,omitempty"`
	Units []Unit `yaml:"units,omitempty" json:"units,omitempty"`
}

// Reward is one configured reward and its redemption cost in stars.
type Reward struct {
	Title string `yaml:"title" json:"title"`
	Img   string `yaml:"img,omitempty" json:"img,omitempty"`
	Cost  int    `yaml:"cost" json:"cost"`
}

// Member is one configured household participant with ordered task and
// reward lists. The state service only depends on list lengths and point
// values; presentation fields are carried through untouched for the
// dashboard.
type Member struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Avatar  string   `yaml:"avatar,omitempty" json:"avatar,omitempty"`
	Tasks   []Task   `yaml:"tasks" json:"tasks"`
	Rewards []Reward `yaml:"rewards" json:"rewards"`
}

// Family is the full household configuration.
type Family struct {
	Members []Member `yaml:"members" json:"members"`
}

// Load reads and validates a family configuration file.
func Load(path string) (*Family, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading family config: %w", err)
	}

	var f Family
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing family config: %w", err)
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Family) validate() error {
	seen := map[string]bool{}
	for i, m := range f.Members {
		if m.ID == "" {
			return fmt.Errorf("member %d: id must not be empty", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate member id %q", m.ID)
		}
		seen[m.ID] = true

		for _, task := range m.Tasks {
			if task.Stars < 0 {
				return fmt.Errorf("member %q task %q: stars must not be negative", m.ID, task.Title)
			}
			for _, u := range task.Units {
				if u.Stars < 0 {
					return fmt.Errorf("member %q task %q unit %q: stars must not be negative", m.ID, task.Title, u.Label)
				}
			}
		}
		for _, reward := range m.Rewards {
			if reward.Cost < 0 {
				return fmt.Errorf("member %q reward %q: cost must not be negative", m.ID, reward.Title)
			}
		}
	}
	return nil
}

// Member returns the configured member with the given id.
func (f *Family) Member(id string) (*Member, bool) {
	for i := range f.Members {
		if f.Members[i].ID == id {
			return &f.Members[i], true
		}
	}
	return nil, false
}

// TaskCount returns the length of a member's task list, or zero for an
// unknown member.
func (f *Family) TaskCount(id string) int {
	m, ok := f.Member(id)
	if !ok {
		return 0
	}
	return len(m.Tasks)
}

// RewardCount returns the length of a member's reward list, or zero for an
// unknown member.
func (f *Family) RewardCount(id string) int {
	m, ok := f.Member(id)
	if !ok {
		return 0
	}
	return len(m.Rewards)
}

// RewardCost returns the star cost of a member's reward at the given
// carousel index.
func (f *Family) RewardCost(id string, index int) (int, bool) {
	m, ok := f.Member(id)
	if !ok || index < 0 || index >= len(m.Rewards) {
		return 0, false
	}
	return m.Rewards[index].Cost, true
}
