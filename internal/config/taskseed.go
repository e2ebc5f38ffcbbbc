package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/utils/amount"
)

// TaskSeed is the content of a seed file: templates first, then the tasks
// rendered with them. Rewards are decimal token amounts.
type TaskSeed struct {
	Templates []domain.Template
	Tasks     []domain.Task
}

type seedFile struct {
	Templates []struct {
		ID   string `yaml:"id"`
		Data string `yaml:"data"`
	} `yaml:"templates"`
	Tasks []struct {
		domain.Task `yaml:",inline"`
		Reward      string `yaml:"reward"`
	} `yaml:"tasks"`
}

// LoadTaskSeed reads a YAML seed file
func LoadTaskSeed(path string, decimals int32) (*TaskSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseTaskSeed(data, decimals)
}

func ParseTaskSeed(data []byte, decimals int32) (*TaskSeed, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	seed := &TaskSeed{}
	for _, t := range f.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("seed template without id")
		}
		seed.Templates = append(seed.Templates, domain.Template{ID: t.ID, Data: t.Data})
	}
	for i, t := range f.Tasks {
		reward, err := amount.Parse(t.Reward, decimals)
		if err != nil {
			return nil, fmt.Errorf("seed task %d: %w", i, err)
		}
		task := t.Task
		task.Reward = reward
		seed.Tasks = append(seed.Tasks, task)
	}
	return seed, nil
}
